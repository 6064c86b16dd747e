package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"orionos/internal/servicetoken"
	"orionos/pkg/domain"
	"orionos/pkg/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	root := Root("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func useMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	mem := store.NewMemoryStore()
	prev := openStore
	openStore = func(string) (store.Store, error) { return mem, nil }
	t.Cleanup(func() { openStore = prev })
	return mem
}

func TestAppsSeedIsIdempotent(t *testing.T) {
	useMemoryStore(t)

	out, err := run(t, "apps", "seed", "--database-url", "postgres://test")
	require.NoError(t, err)
	require.Contains(t, out, "created flow")
	require.Contains(t, out, "created stellar")

	out, err = run(t, "apps", "seed", "--database-url", "postgres://test")
	require.NoError(t, err)
	require.Contains(t, out, "exists  flow")

	out, err = run(t, "apps", "list", "--database-url", "postgres://test")
	require.NoError(t, err)
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "stellar")
	require.Contains(t, out, "1200x800")
}

func TestAppsRequireDatabaseURL(t *testing.T) {
	t.Setenv("ORIONCTL_DATABASE_URL", "")
	_, err := run(t, "apps", "list")
	require.ErrorContains(t, err, "database URL required")
}

func TestKeysAndToken(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "keys", "generate", "--dir", dir, "--name", "k1", "--bits", "2048")
	require.NoError(t, err)
	require.Contains(t, out, "k1.pub.pem")

	out, err = run(t, "token", "--private-key", filepath.Join(dir, "k1.key.pem"), "--kid", "k1")
	require.NoError(t, err)
	token := strings.TrimSpace(out)

	verifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		PublicKeys:     map[string]string{"k1": filepath.Join(dir, "k1.pub.pem")},
		Audience:       servicetoken.DesktopAudience,
		AllowedIssuers: []string{"orionctl"},
	})
	require.NoError(t, err)
	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	require.True(t, claims.HasScope(servicetoken.ScopeAppsWrite))
}

func TestAppsRegisterPostsDescriptor(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "keys", "generate", "--dir", dir, "--name", servicetoken.DefaultKeyID, "--bits", "2048")
	require.NoError(t, err)
	verifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		PublicKeys:     map[string]string{servicetoken.DefaultKeyID: filepath.Join(dir, servicetoken.DefaultKeyID+".pub.pem")},
		Audience:       servicetoken.DesktopAudience,
		AllowedIssuers: []string{"orionctl"},
	})
	require.NoError(t, err)

	var got domain.App
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/apps" {
			http.NotFound(w, r)
			return
		}
		if _, err := verifier.Authorize(r, servicetoken.ScopeAppsWrite); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		got.ID = "app-1"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(got)
	}))
	defer srv.Close()

	descriptor := filepath.Join(dir, "notes.yaml")
	require.NoError(t, os.WriteFile(descriptor, []byte(`name: notes
displayName: Notes
width: 480
height: 360
features: [multiInstance, realtime]
`), 0o600))

	out, err := run(t, "apps", "register", descriptor,
		"--desktop-url", srv.URL,
		"--private-key", filepath.Join(dir, servicetoken.DefaultKeyID+".key.pem"))
	require.NoError(t, err)
	require.Contains(t, out, "registered notes (app-1)")
	require.Equal(t, 480.0, got.DefaultWindow.Width)
	require.True(t, got.Supports(domain.CapMultiInstance))
}

func TestLoadDescriptorRejectsUnknownCapability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nwidth: 1\nheight: 1\nfeatures: [teleport]\n"), 0o600))
	_, err := LoadDescriptor(path)
	require.ErrorContains(t, err, "unknown capability")
}

func TestOpenAPIDocumentMatchesWireTypes(t *testing.T) {
	out, err := run(t, "openapi", "check", filepath.Join("..", "..", "api", "openapi", "desktop.yaml"))
	require.NoError(t, err)
	require.Contains(t, out, "OpenAPI consistency check passed.")
}

func TestOpenAPICheckRejectsNumericCounters(t *testing.T) {
	doc, err := loadDoc(filepath.Join("..", "..", "api", "openapi", "desktop.yaml"))
	require.NoError(t, err)
	drive := doc.Components.Schemas["Drive"]
	drive.Properties["totalStorage"] = schema{Type: "integer", Format: "int64"}
	doc.Components.Schemas["Drive"] = drive
	require.ErrorContains(t, CheckDoc(doc), "Drive.totalStorage must be a string-encoded integer")

	delete(doc.Components.Schemas, "AppState")
	require.Error(t, CheckDoc(doc))
}
