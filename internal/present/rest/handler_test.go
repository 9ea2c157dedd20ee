package rest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/infra/gateway"
	"github.com/totegamma/starnet/internal/infra/repository"
	"github.com/totegamma/starnet/internal/present/rest/middleware"
	"github.com/totegamma/starnet/internal/service"
	"github.com/totegamma/starnet/internal/usecase"
)

type testServer struct {
	e       *echo.Echo
	root    string
	runtime *service.Runtime
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	network, err := gateway.NewMemoryNetworkRegistry()
	if err != nil {
		t.Fatalf("network registry: %v", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := service.NewManifestSigner(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	root := t.TempDir()
	config := domain.Config{
		FQDN:        "star.example.com",
		PublishRoot: filepath.Join(root, "published"),
		InstallRoot: filepath.Join(root, "installed"),
	}

	events := service.NewLocalSignal()
	holon := usecase.NewHolonUsecase(usecase.HolonUsecaseDeps{
		Repo:    repository.NewPebbleHolonRepository(db),
		Content: gateway.NewFileContentStore(),
		Network: network,
		Builder: gateway.NewTarballBuilder(),
		Events:  events,
		Signer:  signer,
	}, config)
	runtime := service.NewRuntime()

	h := NewHandler(config, signer.Address(), holon, runtime, events)
	identity := middleware.NewIdentityMiddleware(service.NewIdentityService())

	e := echo.New()
	e.Use(identity.IdentifyAvatar)
	h.RegisterRoutes(e)

	return &testServer{e: e, root: root, runtime: runtime}
}

func (s *testServer) do(t *testing.T, method, path, avatar string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if avatar != "" {
		req.Header.Set(domain.AvatarIdHeader, avatar)
	}
	res := httptest.NewRecorder()
	s.e.ServeHTTP(res, req)
	return res
}

func (s *testServer) source(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(s.root, "src", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>"+name+"</h1>"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return dir
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) domain.Result[T] {
	t.Helper()
	var result domain.Result[T]
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return result
}

func (s *testServer) create(t *testing.T, family, avatar string, body map[string]string) domain.Holon {
	t.Helper()
	res := s.do(t, http.MethodPost, "/api/"+family, avatar, body)
	if res.Code != http.StatusOK {
		t.Fatalf("create: expected 200 got %d: %s", res.Code, res.Body.String())
	}
	result := decode[domain.Holon](t, res)
	if result.IsError || result.Result == nil {
		t.Fatalf("create: unexpected envelope %+v", result)
	}
	return *result.Result
}

func TestHandleCreateAndLoad(t *testing.T) {
	s := newTestServer(t)

	created := s.create(t, "oapps", "alice", map[string]string{"name": "Explorer", "holonSubType": "console"})
	if created.Version != 1 || created.Status != domain.StatusDraft || created.Subtype != "Console" {
		t.Fatalf("unexpected holon %+v", created)
	}

	res := s.do(t, http.MethodGet, "/api/oapps/"+created.ID+"?version=1", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
	result := decode[domain.Holon](t, res)
	if result.Message != "OAPP loaded." || result.Result.ID != created.ID {
		t.Fatalf("unexpected envelope %+v", result)
	}

	res = s.do(t, http.MethodGet, "/api/oapps/"+created.ID+"/versions", "", nil)
	versions := decode[[]domain.Holon](t, res)
	if res.Code != http.StatusOK || len(*versions.Result) != 1 {
		t.Fatalf("expected one version got %s", res.Body.String())
	}

	res = s.do(t, http.MethodGet, "/api/oapps", "", nil)
	list := decode[[]domain.Holon](t, res)
	if res.Code != http.StatusOK || len(*list.Result) != 1 {
		t.Fatalf("expected one holon got %s", res.Body.String())
	}
}

func TestHandleErrors(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "oapps", "alice", map[string]string{"name": "Explorer", "holonSubType": "OAPP"})

	tests := []struct {
		name    string
		method  string
		path    string
		avatar  string
		body    any
		status  int
		message string
	}{
		{"missing avatar", http.MethodPost, "/api/oapps", "", map[string]string{"name": "x", "holonSubType": "OAPP"}, http.StatusBadRequest, "AvatarId is required"},
		{"invalid subtype", http.MethodPost, "/api/oapps", "alice", map[string]string{"name": "x", "holonSubType": "Zome"}, http.StatusBadRequest, "Valid values include"},
		{"unknown family", http.MethodGet, "/api/spaceships", "alice", nil, http.StatusNotFound, "family spaceships not found"},
		{"unknown holon", http.MethodGet, "/api/oapps/missing", "alice", nil, http.StatusNotFound, "not found"},
		{"wrong family", http.MethodGet, "/api/runtimes/" + created.ID, "alice", nil, http.StatusNotFound, "not found"},
		{"invalid version", http.MethodGet, "/api/oapps/" + created.ID + "?version=abc", "alice", nil, http.StatusBadRequest, "invalid version"},
		{"activate draft", http.MethodPost, "/api/oapps/" + created.ID + "/activate", "alice", nil, http.StatusConflict, "cannot activate"},
		{"not owner", http.MethodPut, "/api/oapps/" + created.ID, "mallory", map[string]string{"name": "Mine"}, http.StatusForbidden, "does not own"},
		{"missing term", http.MethodGet, "/api/oapps/search", "alice", nil, http.StatusBadRequest, "Search term is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.do(t, tt.method, tt.path, tt.avatar, tt.body)
			if res.Code != tt.status {
				t.Fatalf("expected %d got %d: %s", tt.status, res.Code, res.Body.String())
			}
			result := decode[any](t, res)
			if !result.IsError || result.Result != nil {
				t.Fatalf("expected error envelope got %s", res.Body.String())
			}
			if !strings.Contains(result.Message, tt.message) {
				t.Fatalf("expected message containing %q got %q", tt.message, result.Message)
			}
		})
	}
}

func TestHandlePublishAndDownload(t *testing.T) {
	s := newTestServer(t)
	src := s.source(t, "explorer")
	created := s.create(t, "oapps", "alice", map[string]string{
		"name":             "Explorer",
		"holonSubType":     "OAPP",
		"sourceFolderPath": src,
	})

	res := s.do(t, http.MethodPost, "/api/oapps/"+created.ID+"/publish", "alice", map[string]any{"registerOnSTARNET": true})
	if res.Code != http.StatusOK {
		t.Fatalf("publish: expected 200 got %d: %s", res.Code, res.Body.String())
	}
	published := decode[domain.PublishResult](t, res)
	if published.Result.Holon.Status != domain.StatusPublished || published.Message != "OAPP published as version 1." {
		t.Fatalf("unexpected publish envelope %s", res.Body.String())
	}
	if _, err := os.Stat(published.Result.ManifestPath); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	res = s.do(t, http.MethodGet, "/api/oapps/network", "bob", nil)
	entries := decode[[]domain.NetworkEntry](t, res)
	if res.Code != http.StatusOK || len(*entries.Result) != 1 {
		t.Fatalf("expected one network entry got %s", res.Body.String())
	}

	res = s.do(t, http.MethodPost, "/api/oapps/"+created.ID+"/download", "alice", map[string]any{"version": 1})
	if res.Code != http.StatusOK {
		t.Fatalf("download: expected 200 got %d: %s", res.Code, res.Body.String())
	}
	downloaded := decode[domain.DownloadResult](t, res)
	wantPath := filepath.Join(s.root, "installed", "oapps", created.ID, "v1")
	if downloaded.Result.Path != wantPath || downloaded.Result.Holon.InstalledPath != wantPath {
		t.Fatalf("unexpected download result %s", res.Body.String())
	}
	data, err := os.ReadFile(filepath.Join(wantPath, "index.html"))
	if err != nil || string(data) != "<h1>explorer</h1>" {
		t.Fatalf("installed content mismatch %q (%v)", data, err)
	}

	res = s.do(t, http.MethodPost, "/api/oapps/"+created.ID+"/download", "alice", map[string]any{"version": 1})
	again := decode[domain.DownloadResult](t, res)
	if !again.Result.Skipped || again.Message != "OAPP is already installed." {
		t.Fatalf("expected skipped download got %s", res.Body.String())
	}

	res = s.do(t, http.MethodPost, "/api/oapps/"+created.ID+"/unpublish", "alice", nil)
	unpublished := decode[domain.Holon](t, res)
	if res.Code != http.StatusOK || unpublished.Result.Status != domain.StatusUnpublished {
		t.Fatalf("unexpected unpublish response %s", res.Body.String())
	}

	res = s.do(t, http.MethodPost, "/api/oapps/"+created.ID+"/download", "bob", map[string]any{"version": 1})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected unpublished holon to be hidden from bob got %d", res.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "geo-hotspots", "alice", map[string]string{"name": "Forest", "holonSubType": "GeoHotSpot"})
	s.create(t, "geo-hotspots", "bob", map[string]string{"name": "Forest Lake", "holonSubType": "Park"})

	res := s.do(t, http.MethodGet, "/api/geo-hotspots/search?searchTerm=fore", "alice", nil)
	found := decode[[]domain.Holon](t, res)
	if res.Code != http.StatusOK || len(*found.Result) != 2 {
		t.Fatalf("expected 2 matches got %s", res.Body.String())
	}

	res = s.do(t, http.MethodGet, "/api/geo-hotspots/search?searchTerm=fore&searchOnlyForCurrentAvatar=true", "alice", nil)
	found = decode[[]domain.Holon](t, res)
	if len(*found.Result) != 1 || (*found.Result)[0].Name != "Forest" {
		t.Fatalf("expected only alice's holon got %s", res.Body.String())
	}
}

func TestHandleWellKnown(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/.well-known/starnet", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}
	var wellknown domain.WellKnown
	if err := json.Unmarshal(res.Body.Bytes(), &wellknown); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wellknown.Domain != "star.example.com" || !strings.HasPrefix(wellknown.Address, service.AddressPrefix) {
		t.Fatalf("unexpected well-known %+v", wellknown)
	}
	if len(wellknown.Families) != len(domain.Families()) {
		t.Fatalf("expected every family to be listed got %d", len(wellknown.Families))
	}
}

func TestHandleCosmic(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodGet, "/api/cosmic/status", "", nil)
	status := decode[service.RuntimeStatus](t, res)
	if status.Result.Ignited {
		t.Fatalf("runtime should start extinguished")
	}

	s.create(t, "plugins", "alice", map[string]string{"name": "Sync", "holonSubType": "Plugin"})
	if !s.runtime.IsIgnited() {
		t.Fatalf("expected the first holon request to ignite the runtime")
	}

	res = s.do(t, http.MethodPost, "/api/cosmic/extinguish", "", nil)
	status = decode[service.RuntimeStatus](t, res)
	if res.Code != http.StatusOK || status.Result.Ignited || status.Message != "STAR extinguished." {
		t.Fatalf("unexpected extinguish response %s", res.Body.String())
	}

	res = s.do(t, http.MethodPost, "/api/cosmic/ignite", "", nil)
	status = decode[service.RuntimeStatus](t, res)
	if !status.Result.Ignited || status.Result.Boots != 2 {
		t.Fatalf("unexpected ignite response %s", res.Body.String())
	}
}
