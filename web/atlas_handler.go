package web

import (
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"

	"atlasd/atlas"
)

// AtlasHandler serves the precomputed atlas artifacts.
type AtlasHandler struct {
	store  *atlas.Store
	index  *atlas.GeneIndex // nil when no search index was built
	logger *zap.Logger
}

func NewAtlasHandler(store *atlas.Store, index *atlas.GeneIndex, logger *zap.Logger) *AtlasHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AtlasHandler{store: store, index: index, logger: logger}
}

// RegisterRoutes registers the atlas data routes on the mux.
func (h *AtlasHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tree", h.handleTree)
	mux.HandleFunc("GET /api/node/{node}", h.handleNode)
	mux.HandleFunc("GET /api/node/{node}/summary", h.handleNodeSummary)
	mux.HandleFunc("GET /api/program/{node}/{program}/description", h.handleProgramDescription)
	mux.HandleFunc("GET /api/program/{node}/{program}/genes", h.handleProgramGenes)
	mux.HandleFunc("GET /api/program/{node}/{program}/loadings", h.handleProgramLoadings)
	mux.HandleFunc("GET /api/images/{filepath...}", h.handleImage)
	mux.HandleFunc("GET /api/node-summary-image/{node}/{filename}", h.handleSummaryImage)
	mux.HandleFunc("GET /api/interactive-plot/{node}/{plot}", h.handleInteractivePlot)
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("GET /api/search/gene/{gene}", h.handleGeneSearch)
}

func (h *AtlasHandler) handleTree(w http.ResponseWriter, r *http.Request) {
	tree := h.store.Tree()
	if tree == nil {
		tree = map[string]any{}
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *AtlasHandler) handleNode(w http.ResponseWriter, r *http.Request) {
	overview, ok := h.store.NodeOverview(r.PathValue("node"))
	if !ok {
		writeError(w, http.StatusNotFound, "Node not found")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *AtlasHandler) handleNodeSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.store.NodeSummary(r.PathValue("node"))
	if !ok {
		writeError(w, http.StatusNotFound, "Node summary not found")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// lookupProgram resolves node+program path values, writing the 404 itself
// when either is unknown.
func (h *AtlasHandler) lookupProgram(w http.ResponseWriter, r *http.Request) (atlas.Program, bool) {
	node := r.PathValue("node")
	if _, ok := h.store.Node(node); !ok {
		writeError(w, http.StatusNotFound, "Node not found")
		return atlas.Program{}, false
	}
	prog, ok := h.store.Program(node, r.PathValue("program"))
	if !ok {
		writeError(w, http.StatusNotFound, "Program not found")
		return atlas.Program{}, false
	}
	return prog, true
}

func (h *AtlasHandler) handleProgramDescription(w http.ResponseWriter, r *http.Request) {
	prog, ok := h.lookupProgram(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"description": prog.Description})
}

func (h *AtlasHandler) handleProgramGenes(w http.ResponseWriter, r *http.Request) {
	prog, ok := h.lookupProgram(w, r)
	if !ok {
		return
	}
	genes := prog.Genes
	if genes == nil {
		genes = []string{}
	}
	totalGenes := prog.TotalGenes
	if totalGenes == 0 {
		totalGenes = len(genes)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"genes":       genes,
		"total_genes": totalGenes,
	})
}

func (h *AtlasHandler) handleProgramLoadings(w http.ResponseWriter, r *http.Request) {
	prog, ok := h.lookupProgram(w, r)
	if !ok {
		return
	}
	loadings := prog.Loadings
	if loadings == nil {
		loadings = map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"loadings": loadings})
}

func (h *AtlasHandler) handleImage(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.AssetPath(r.PathValue("filepath"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

func (h *AtlasHandler) handleSummaryImage(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.SummaryImagePath(r.PathValue("node"), r.PathValue("filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Node not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "Node not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

func (h *AtlasHandler) handleInteractivePlot(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.InteractivePlotPath(r.PathValue("node"), r.PathValue("plot"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Plot not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, path)
}

func (h *AtlasHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

func (h *AtlasHandler) handleGeneSearch(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeError(w, http.StatusServiceUnavailable, "Gene search is not available")
		return
	}

	gene := r.PathValue("gene")
	limit := 0
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	hits, err := h.index.SearchGene(gene, limit)
	if err != nil {
		h.logger.Error("gene search failed", zap.String("gene", gene), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gene":    gene,
		"count":   len(hits),
		"results": hits,
	})
}
