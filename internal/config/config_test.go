package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpod/classpod/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validFile = `
platforms:
  - issuer: https://lms.example.edu
    clientId: classpod-client
    authLoginUrl: https://lms.example.edu/lti/auth
    authTokenUrl: https://lms.example.edu/lti/token
    keySetUrl: https://lms.example.edu/lti/jwks
    deploymentIds:
      - deployment-1
containers:
  - name: jupyter
    groups: [course-a, course-b]
  - name: rstudio
    groups: [course-c]
`

func TestLoadFile_Valid(t *testing.T) {
	f, err := config.LoadFile(writeFile(t, validFile))
	require.NoError(t, err)

	require.Len(t, f.Platforms, 1)
	assert.Equal(t, "https://lms.example.edu", f.Platforms[0].Issuer)
	assert.Equal(t, []string{"deployment-1"}, f.Platforms[0].DeploymentIDs)

	require.Len(t, f.Containers, 2)
	assert.Equal(t, "jupyter", f.Containers[0].Name)
	assert.Equal(t, []string{"course-a", "course-b"}, f.Containers[0].Groups)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	_, err := config.LoadFile(writeFile(t, "platforms: [}"))
	assert.Error(t, err)
}

func TestValidate_RequiresLaunchCriticalFields(t *testing.T) {
	cases := []struct {
		name string
		file config.File
	}{
		{"no platforms", config.File{}},
		{"missing issuer", config.File{Platforms: []config.Platform{{
			ClientID: "c", AuthLoginURL: "https://a", KeySetURL: "https://k",
		}}}},
		{"missing client id", config.File{Platforms: []config.Platform{{
			Issuer: "https://i", AuthLoginURL: "https://a", KeySetURL: "https://k",
		}}}},
		{"missing auth login url", config.File{Platforms: []config.Platform{{
			Issuer: "https://i", ClientID: "c", KeySetURL: "https://k",
		}}}},
		{"missing key set url", config.File{Platforms: []config.Platform{{
			Issuer: "https://i", ClientID: "c", AuthLoginURL: "https://a",
		}}}},
		{"duplicate issuer", config.File{Platforms: []config.Platform{
			{Issuer: "https://i", ClientID: "c", AuthLoginURL: "https://a", KeySetURL: "https://k"},
			{Issuer: "https://i", ClientID: "c2", AuthLoginURL: "https://a", KeySetURL: "https://k"},
		}}},
		{"unnamed container", config.File{
			Platforms:  []config.Platform{{Issuer: "https://i", ClientID: "c", AuthLoginURL: "https://a", KeySetURL: "https://k"}},
			Containers: []config.ContainerRule{{Groups: []string{"a"}}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.file.Validate())
		})
	}
}

func TestPlatformByIssuer(t *testing.T) {
	f, err := config.LoadFile(writeFile(t, validFile))
	require.NoError(t, err)

	p, ok := f.PlatformByIssuer("https://lms.example.edu")
	assert.True(t, ok)
	assert.Equal(t, "classpod-client", p.ClientID)

	_, ok = f.PlatformByIssuer("https://other.example.edu")
	assert.False(t, ok)
}
