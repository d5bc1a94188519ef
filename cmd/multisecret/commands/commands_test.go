package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/multisecret/internal/config"
	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/pkg/secretspec"
	"github.com/systmms/multisecret/tests/testutil"
	"github.com/zalando/go-keyring"
)

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

const keychainConfig = `version: 0
secret: app/credentials
store:
  type: keychain
  service_prefix: multisecret-test/
keys:
  - name: apiKey
    passwordLength: 20
  - name: dbPassword
    excludePunctuation: true
  - name: db
    passwordLength: 12
    secretStringTemplate: '{"username":"admin"}'
    generateStringKey: password
`

func writeConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multisecret.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return &config.Config{
		Path:   path,
		Logger: logging.Discard(),
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	cfg := writeConfig(t, keychainConfig)

	output, err := execute(t, NewGenerateCommand(cfg))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	assert.Len(t, doc["apiKey"], 20)
	assert.Len(t, doc["dbPassword"], 32)

	db, ok := doc["db"].(map[string]interface{})
	require.True(t, ok, "template key should produce an object")
	assert.Equal(t, "admin", db["username"])
	assert.Len(t, db["password"], 12)

	assert.Less(t, strings.Index(output, `"apiKey"`), strings.Index(output, `"dbPassword"`))
}

func TestGenerateCommand_KeysFile(t *testing.T) {
	keysPath := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(keysPath, []byte(`[{"name":"token","passwordLength":"8"}]`), 0644))

	cfg := &config.Config{Path: "does-not-exist.yaml", Logger: logging.Discard()}
	output, err := execute(t, NewGenerateCommand(cfg), "--keys", keysPath, "--pretty")
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	assert.Len(t, doc["token"], 8)
	assert.Contains(t, output, "\n  \"token\"")
}

func TestFingerprintCommand(t *testing.T) {
	cfg := writeConfig(t, keychainConfig)

	first, err := execute(t, NewFingerprintCommand(cfg))
	require.NoError(t, err)
	second, err := execute(t, NewFingerprintCommand(cfg))
	require.NoError(t, err)

	assert.Regexp(t, fingerprintPattern, strings.TrimSpace(first))
	assert.Equal(t, first, second)

	changed := writeConfig(t, strings.Replace(keychainConfig, "passwordLength: 20", "passwordLength: 21", 1))
	third, err := execute(t, NewFingerprintCommand(changed))
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestProvisionAndGet(t *testing.T) {
	keyring.MockInit()
	cfg := writeConfig(t, keychainConfig)

	output, err := execute(t, NewProvisionCommand(cfg))
	require.NoError(t, err)
	fingerprint := strings.TrimSpace(output)
	assert.Regexp(t, fingerprintPattern, fingerprint)

	apiKey, err := execute(t, NewGetCommand(cfg), "--key", "apiKey")
	require.NoError(t, err)
	assert.Len(t, apiKey, 20)

	t.Run("unchanged key list skips the write", func(t *testing.T) {
		again, err := execute(t, NewProvisionCommand(cfg), "--previous", fingerprint)
		require.NoError(t, err)
		assert.Equal(t, fingerprint, strings.TrimSpace(again))

		value, err := execute(t, NewGetCommand(cfg), "--key", "apiKey")
		require.NoError(t, err)
		assert.Equal(t, apiKey, value)
	})

	t.Run("force regenerates", func(t *testing.T) {
		_, err := execute(t, NewProvisionCommand(cfg), "--force")
		require.NoError(t, err)

		value, err := execute(t, NewGetCommand(cfg), "--key", "apiKey")
		require.NoError(t, err)
		assert.NotEqual(t, apiKey, value)
	})

	t.Run("template key prints its object", func(t *testing.T) {
		value, err := execute(t, NewGetCommand(cfg), "--key", "db")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(value, `{"username":"admin","password":"`))
	})

	t.Run("json output", func(t *testing.T) {
		value, err := execute(t, NewGetCommand(cfg), "--key", "dbPassword", "--json")
		require.NoError(t, err)

		var result map[string]string
		require.NoError(t, json.Unmarshal([]byte(value), &result))
		assert.Equal(t, "app/credentials", result["secret"])
		assert.Equal(t, "dbPassword", result["key"])
		assert.Equal(t, "keychain", result["store"])
		assert.Len(t, result["value"], 32)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := execute(t, NewGetCommand(cfg), "--key", "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
	})
}

func TestProvisionCommand_DryRun(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	t.Cleanup(keyring.MockInit)
	cfg := writeConfig(t, keychainConfig)

	output, err := execute(t, NewProvisionCommand(cfg), "--dry-run")
	require.NoError(t, err)
	assert.Regexp(t, fingerprintPattern, strings.TrimSpace(output))
}

func TestProvisionCommand_StoreFailure(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	t.Cleanup(keyring.MockInit)
	cfg := writeConfig(t, keychainConfig)

	_, err := execute(t, NewProvisionCommand(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keychain store error during provision")
}

func TestProvisionCommand_MetricsFile(t *testing.T) {
	cfg := writeConfig(t, strings.Replace(keychainConfig, "type: keychain", "type: memory", 1))
	metricsPath := filepath.Join(t.TempDir(), "multisecret.prom")

	_, err := execute(t, NewProvisionCommand(cfg), "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "multisecret_")
}

func TestProvisionCommand_PreviousAndForceConflict(t *testing.T) {
	cfg := writeConfig(t, keychainConfig)

	_, err := execute(t, NewProvisionCommand(cfg), "--previous", "abc", "--force")
	require.Error(t, err)
}

func TestRefCommand(t *testing.T) {
	cfg := writeConfig(t, keychainConfig)

	t.Run("dynamic reference", func(t *testing.T) {
		output, err := execute(t, NewRefCommand(cfg), "--key", "apiKey")
		require.NoError(t, err)
		assert.Equal(t, "{{resolve:secretsmanager:app/credentials:SecretString:apiKey::}}\n", output)
	})

	t.Run("all keys as jsonpath", func(t *testing.T) {
		output, err := execute(t, NewRefCommand(cfg), "--all", "--format", "jsonpath")
		require.NoError(t, err)
		assert.Equal(t,
			"apiKey\tapp/credentials#.apiKey\ndbPassword\tapp/credentials#.dbPassword\ndb\tapp/credentials#.db\n",
			output)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := execute(t, NewRefCommand(cfg), "--key", "nope")
		require.Error(t, err)
	})

	t.Run("missing key flag", func(t *testing.T) {
		_, err := execute(t, NewRefCommand(cfg))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Key name is required")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, NewRefCommand(cfg), "--key", "apiKey", "--format", "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown reference format")
	})
}

func TestGrantCommand(t *testing.T) {
	keyring.MockInit()

	t.Run("unsupported store", func(t *testing.T) {
		cfg := writeConfig(t, keychainConfig)
		_, err := execute(t, NewGrantCommand(cfg), "--principal", "arn:aws:iam::123456789012:role/app")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "keychain store error during grant")
	})

	t.Run("invalid access level", func(t *testing.T) {
		cfg := writeConfig(t, keychainConfig)
		_, err := execute(t, NewGrantCommand(cfg), "--principal", "someone", "--access", "admin")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "readwrite")
	})

	t.Run("memory store accepts grants", func(t *testing.T) {
		cfg := writeConfig(t, strings.Replace(keychainConfig, "type: keychain", "type: memory", 1))
		_, err := execute(t, NewGrantCommand(cfg), "--principal", "someone", "--access", "write")
		require.NoError(t, err)
	})
}

func TestDoctorCommand(t *testing.T) {
	keyring.MockInit()

	t.Run("healthy", func(t *testing.T) {
		cfg := writeConfig(t, keychainConfig)
		output, err := execute(t, NewDoctorCommand(cfg))
		require.NoError(t, err)
		assert.Contains(t, output, "key apiKey")
		assert.Contains(t, output, "20 characters")
		assert.Contains(t, output, "Store is reachable")
		assert.Contains(t, output, "Summary: 4/4 checks passed for app/credentials")
	})

	t.Run("key that cannot be generated", func(t *testing.T) {
		cfg := writeConfig(t, `secret: s
store:
  type: memory
keys:
  - name: pin
    passwordLength: 2
    requireEachIncludedType: true
`)
		output, err := execute(t, NewDoctorCommand(cfg), "--skip-store")
		require.Error(t, err)
		assert.Contains(t, output, "✗ error")
		assert.Contains(t, output, "Summary: 0/1 checks passed")
	})

	t.Run("store failure with suggestions", func(t *testing.T) {
		keyring.MockInitWithError(assert.AnError)
		t.Cleanup(keyring.MockInit)

		cfg := writeConfig(t, keychainConfig)
		output, err := execute(t, NewDoctorCommand(cfg), "--verbose")
		require.Error(t, err)
		assert.Contains(t, output, "keychain")
		assert.Contains(t, output, "Summary: 3/4 checks passed")
	})
}

func TestProvisionCommand_ValuesNeverLogged(t *testing.T) {
	keyring.MockInit()
	logger := testutil.NewTestLogger(t)
	cfg := testutil.NewTestConfig(t).
		WithSecret("app/redaction").
		WithStore("keychain", map[string]any{"service_prefix": "multisecret-redaction/"}).
		WithKey(secretspec.Spec{Name: "apiKey", PasswordLength: 24}).
		WithKey(secretspec.Spec{Name: "signingKey", ExcludePunctuation: true}).
		Config(logger)

	_, err := execute(t, NewProvisionCommand(cfg))
	require.NoError(t, err)

	for _, key := range []string{"apiKey", "signingKey"} {
		value, err := execute(t, NewGetCommand(cfg), "--key", key)
		require.NoError(t, err)
		require.NotEmpty(t, value)
		logger.AssertNotContains(t, value)
	}
	logger.AssertContains(t, "Provisioned app/redaction")
}

func TestGenerateCommand_ConfigKeysFile(t *testing.T) {
	cfg := testutil.NewTestConfig(t).
		WithKeysFile("keys.yaml",
			secretspec.Spec{Name: "first", PasswordLength: 5},
			secretspec.Spec{Name: "second", PasswordLength: 6, ExcludeNumbers: true},
		).
		Config(testutil.NewTestLogger(t))

	output, err := execute(t, NewGenerateCommand(cfg))
	require.NoError(t, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &doc))
	assert.Len(t, doc["first"], 5)
	assert.Len(t, doc["second"], 6)
}

func TestVerifyCommand(t *testing.T) {
	keyring.MockInit()
	cfg := writeConfig(t, strings.Replace(keychainConfig, "multisecret-test/", "multisecret-verify/", 1))

	_, err := execute(t, NewVerifyCommand(cfg))
	require.Error(t, err, "nothing provisioned yet")

	_, err = execute(t, NewProvisionCommand(cfg))
	require.NoError(t, err)

	output, err := execute(t, NewVerifyCommand(cfg), "--json")
	require.NoError(t, err)
	assert.Contains(t, output, `"valid": true`)
	assert.Contains(t, output, `"checked": 3`)

	t.Run("drift after the key list changed", func(t *testing.T) {
		changed := writeConfig(t, strings.Replace(
			strings.Replace(keychainConfig, "multisecret-test/", "multisecret-verify/", 1),
			"passwordLength: 20", "passwordLength: 30", 1))

		output, err := execute(t, NewVerifyCommand(changed))
		require.Error(t, err)
		assert.Contains(t, output, "key apiKey has 20 characters, expected 30")
		assert.Contains(t, err.Error(), "does not match the configured keys")
	})
}

func TestExecCommand(t *testing.T) {
	keyring.MockInit()
	cfg := writeConfig(t, strings.Replace(keychainConfig, "multisecret-test/", "multisecret-exec/", 1))

	_, err := execute(t, NewProvisionCommand(cfg))
	require.NoError(t, err)
	apiKey, err := execute(t, NewGetCommand(cfg), "--key", "apiKey")
	require.NoError(t, err)

	output, err := execute(t, NewExecCommand(cfg), "--prefix", "APP_", "--", "sh", "-c", `printf %s "$APP_API_KEY"`)
	require.NoError(t, err)
	assert.Equal(t, apiKey, output)

	output, err = execute(t, NewExecCommand(cfg), "--", "sh", "-c", `printf %s "$DB"`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, `{"username":"admin","password":"`))
}
