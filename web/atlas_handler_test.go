package web

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"atlasd/atlas"
)

func fixtureAtlasHandler(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()

	programs := map[string]any{
		"C1": map[string]any{
			"node_name": "C1",
			"programs": map[string]any{
				"program_0": map[string]any{
					"description": "Ciliated cell program. Evidence: FOXJ1 loading.",
					"genes":       []string{"FOXJ1", "DNAI1"},
					"loadings":    map[string]any{"FOXJ1": 0.8},
					"total_genes": 2,
				},
			},
			"node_info": map[string]any{"cell_count": 100},
		},
	}
	tree := map[string]any{"name": "root", "children": []any{map[string]any{"name": "C1"}}}

	writeJSONFile(t, filepath.Join(dir, "programs.json"), programs)
	writeJSONFile(t, filepath.Join(dir, "tree.json"), tree)

	assetsDir := filepath.Join(dir, "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assetsDir, "figure.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := atlas.NewStore(
		filepath.Join(dir, "programs.json"),
		filepath.Join(dir, "tree.json"),
		filepath.Join(dir, "node_summary_figures"),
		assetsDir, nil)
	if err != nil {
		t.Fatal(err)
	}

	index, err := atlas.NewGeneIndex(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { index.Close() })
	if err := index.Build(store); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	NewAtlasHandler(store, index, nil).RegisterRoutes(mux)
	return mux
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestHandleTree(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	body := decodeBody(t, get(t, mux, "/api/tree"))
	if body["name"] != "root" {
		t.Errorf("tree body: %v", body)
	}
}

func TestHandleNode(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	rec := get(t, mux, "/api/node/C1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	programs, _ := body["programs"].(map[string]any)
	p0, _ := programs["program_0"].(map[string]any)
	if p0["summary"] != "Ciliated cell program." {
		t.Errorf("program summary: %v", p0["summary"])
	}
	if _, heavy := p0["genes"]; heavy {
		t.Error("node listing must not inline gene lists")
	}

	rec = get(t, mux, "/api/node/C99")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown node status: %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "Node not found" {
		t.Errorf("unknown node body: %s", rec.Body.String())
	}
}

func TestHandleProgramEndpoints(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	desc := decodeBody(t, get(t, mux, "/api/program/C1/program_0/description"))
	if desc["description"] != "Ciliated cell program. Evidence: FOXJ1 loading." {
		t.Errorf("description: %v", desc)
	}

	genes := decodeBody(t, get(t, mux, "/api/program/C1/program_0/genes"))
	if genes["total_genes"] != float64(2) {
		t.Errorf("total_genes: %v", genes["total_genes"])
	}
	if list, _ := genes["genes"].([]any); len(list) != 2 {
		t.Errorf("genes: %v", genes["genes"])
	}

	loadings := decodeBody(t, get(t, mux, "/api/program/C1/program_0/loadings"))
	inner, _ := loadings["loadings"].(map[string]any)
	if inner["FOXJ1"] != float64(0.8) {
		t.Errorf("loadings: %v", loadings)
	}

	rec := get(t, mux, "/api/program/C1/program_9/genes")
	if rec.Code != http.StatusNotFound || decodeBody(t, rec)["error"] != "Program not found" {
		t.Errorf("unknown program: %d %s", rec.Code, rec.Body.String())
	}
	rec = get(t, mux, "/api/program/C9/program_0/genes")
	if rec.Code != http.StatusNotFound || decodeBody(t, rec)["error"] != "Node not found" {
		t.Errorf("unknown node: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleImage(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	rec := get(t, mux, "/api/images/figure.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("cache header: %q", cc)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("image body: %q", rec.Body.String())
	}

	rec = get(t, mux, "/api/images/missing.png")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing image status: %d", rec.Code)
	}
}

func TestHandleNodeSummaryNotFound(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	rec := get(t, mux, "/api/node/C1/summary")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status without summary dir: %d", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	body := decodeBody(t, get(t, mux, "/api/stats"))
	if body["total_nodes"] != float64(1) || body["total_programs"] != float64(1) {
		t.Errorf("stats: %v", body)
	}
}

func TestHandleGeneSearch(t *testing.T) {
	mux := fixtureAtlasHandler(t)

	body := decodeBody(t, get(t, mux, "/api/search/gene/foxj1"))
	if body["count"] != float64(1) {
		t.Fatalf("search body: %v", body)
	}
	results, _ := body["results"].([]any)
	hit, _ := results[0].(map[string]any)
	if hit["node"] != "C1" || hit["program"] != "program_0" {
		t.Errorf("hit: %v", hit)
	}

	empty := decodeBody(t, get(t, mux, "/api/search/gene/NOPE1"))
	if empty["count"] != float64(0) {
		t.Errorf("no-match body: %v", empty)
	}
	if _, ok := empty["results"].([]any); !ok {
		t.Errorf("results must be an empty list: %v", empty["results"])
	}
}

func TestHandleGeneSearchUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	store, err := atlas.NewStore("", "", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	NewAtlasHandler(store, nil, nil).RegisterRoutes(mux)

	rec := get(t, mux, "/api/search/gene/FOXJ1")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: %d", rec.Code)
	}
}
