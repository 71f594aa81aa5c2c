package tests

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ExternalDependenciesSuite loads live backend credentials and skips when they are absent.
type ExternalDependenciesSuite struct {
	suite.Suite
}

// SetupSuite overloads the environment from SETTINGS_FILE, or $HOME/.env when that exists.
func (s *ExternalDependenciesSuite) SetupSuite() {
	settingsFile := strings.TrimSpace(os.Getenv("SETTINGS_FILE"))
	explicit := settingsFile != ""
	if !explicit {
		homeDir, err := os.UserHomeDir()
		require.NoError(s.T(), err)
		settingsFile = filepath.Join(homeDir, ".env")
	}

	if _, err := os.Stat(settingsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return
		}
		require.NoError(s.T(), err)
	}
	require.NoError(s.T(), godotenv.Overload(settingsFile))
}

// RequireSettings returns the trimmed values of keys, skipping the suite when any is unset.
func (s *ExternalDependenciesSuite) RequireSettings(keys ...string) []string {
	values := make([]string, 0, len(keys))
	missing := make([]string, 0)
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			missing = append(missing, key)
		}
		values = append(values, value)
	}
	if len(missing) > 0 {
		s.T().Skipf("%s not set; skipping external dependency integration test", strings.Join(missing, ", "))
	}
	return values
}

// Setting returns the trimmed value of key, or fallback when it is unset.
func (s *ExternalDependenciesSuite) Setting(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
