package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/applyform/internal/config"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewBufferString(stdin))
	err := root.Execute()
	return out.String(), err
}

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validPayload = `{
  "firstName": "Ada", "lastName": "Lovelace",
  "email": "ada@example.com", "phone": "+2348031234567",
  "country": "Nigeria", "state": "Lagos", "city": "Ikeja",
  "address": "12 Allen Avenue", "zip": "100001", "timeZone": "Africa/Lagos",
  "jobs": [{"title": "Engineer", "company": "Acme", "from": "2020-01-01", "to": null, "description": "Built things"}],
  "github": "https://github.com/ada", "portfolio": "https://ada.dev",
  "resume": []
}`

func TestSteps(t *testing.T) {
	out, err := run(t, "", "steps")
	require.NoError(t, err)
	assert.Contains(t, out, "Personal Information")
	assert.Contains(t, out, "Work Experience")
	assert.Contains(t, out, "firstName, lastName, email, phone")
	assert.Contains(t, out, "resume")
}

func TestValidate_Valid(t *testing.T) {
	path := writePayload(t, validPayload)
	out, err := run(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestValidate_Invalid(t *testing.T) {
	path := writePayload(t, `{"firstName": "A", "email": "bad", "jobs": [{"title": "Engineer", "from": "2021-01-01", "to": "2020-01-01"}]}`)
	out, err := run(t, "", "validate", path)
	require.ErrorIs(t, err, errInvalidPayload)
	assert.Contains(t, out, "first name must be at least 2 characters long")
	assert.Contains(t, out, "Invalid email format")
	assert.Contains(t, out, "jobs.0.to")
	assert.Contains(t, out, "End date must be after the start date.")
}

func TestValidate_Stdin(t *testing.T) {
	out, err := run(t, validPayload, "validate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "- is valid")
}

func TestValidate_Errors(t *testing.T) {
	_, err := run(t, "", "validate", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, "", "validate", writePayload(t, `{"jobs": [{"from": "yesterday"}]}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errInvalidPayload)

	_, err = run(t, "", "validate")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "applyform.yml")

	out, err := run(t, "", "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Address, cfg.Address)

	_, err = run(t, "", "config", "init", "--path", path)
	assert.ErrorIs(t, err, config.ErrExists)

	_, err = run(t, "", "config", "init", "--path", path, "--force")
	assert.NoError(t, err)
}

func TestServe_InvalidConfig(t *testing.T) {
	_, err := run(t, "", "serve", "--codec", "xml")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
	assert.Contains(t, out, "platform:")
}
