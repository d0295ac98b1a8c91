// Package atlas serves the precomputed artifacts of a hierarchical
// single-cell atlas: per-node program data (descriptions, gene lists,
// loadings), the navigation tree, and node summary figures.
package atlas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Program is one gene expression program within a node, as written by the
// report pipeline into programs.json.
type Program struct {
	Description string         `json:"description"`
	Genes       []string       `json:"genes"`
	Loadings    map[string]any `json:"loadings"`
	TotalGenes  int            `json:"total_genes"`

	ViolinsCellType string `json:"program_violins_cell_type"`
	ViolinsLeiden   string `json:"program_violins_leiden"`
	UMAPLeiden      string `json:"program_umap_leiden"`
	UMAPActivity    string `json:"program_umap_activity"`
}

// Node is one tree node's worth of program data.
type Node struct {
	NodeName    string             `json:"node_name"`
	ReportFile  string             `json:"report_file"`
	ProcessedAt string             `json:"processed_at"`
	Programs    map[string]Program `json:"programs"`
	NodeInfo    map[string]any     `json:"node_info"`
}

// ProgramSummary is the lightweight per-program view returned by the node
// listing; heavy fields (description, genes, loadings) are lazy-loaded
// through their own endpoints.
type ProgramSummary struct {
	TotalGenes     int               `json:"total_genes"`
	Summary        string            `json:"summary"`
	HasDescription bool              `json:"has_description"`
	HasGenes       bool              `json:"has_genes"`
	HasLoadings    bool              `json:"has_loadings"`
	Images         map[string]string `json:"images"`
}

// NodeOverview is the response body for the node listing endpoint.
type NodeOverview struct {
	NodeName    string                    `json:"node_name"`
	ReportFile  string                    `json:"report_file"`
	ProcessedAt string                    `json:"processed_at"`
	Programs    map[string]ProgramSummary `json:"programs"`
	NodeInfo    map[string]any            `json:"node_info"`
}

// CellTypeCounts preserves descending count order when serialized, which a
// plain map would lose.
type CellTypeCounts []CellTypeCount

type CellTypeCount struct {
	Name  string
	Count int
}

func (c CellTypeCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		fmt.Fprintf(&buf, ":%d", entry.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NodeSummary is the response body for the node summary endpoint.
type NodeSummary struct {
	NodeName          string            `json:"node_name"`
	Figures           map[string]string `json:"figures"`
	ProgramLabels     map[string]any    `json:"program_labels"`
	ProgramGeneCounts map[string]int    `json:"program_gene_counts"`
	CellTypeCounts    CellTypeCounts    `json:"cell_type_counts"`
}

// Stats summarizes the loaded atlas.
type Stats struct {
	TotalNodes        int            `json:"total_nodes"`
	TotalPrograms     int            `json:"total_programs"`
	NodesWithPrograms []NodePrograms `json:"nodes_with_programs"`
}

type NodePrograms struct {
	NodeName     string `json:"node_name"`
	ProgramCount int    `json:"program_count"`
}

// summaryFigureFiles are the per-node heatmaps looked up in the summary
// figures directory.
var summaryFigureFiles = []string{
	"cell_type_by_program_activity_heatmap.png",
	"cluster_by_cell_type_heatmap.png",
	"leiden_cluster_by_program_activity_heatmap.png",
}

// interactivePlots maps public plot names to files in the node summary
// directory.
var interactivePlots = map[string]string{
	"umap_cell_type": "umap_cell_type.html",
}

// Store holds the atlas artifacts loaded at startup. Program and tree data
// are immutable after Load, so reads need no locking.
type Store struct {
	programs map[string]Node
	tree     any

	summaryDir string
	assetsDir  string
	logger     *zap.Logger
}

// NewStore loads programs.json and tree.json and records the figure
// directories. A missing artifact file is tolerated and leaves that part of
// the store empty, so the server can come up on a partial data directory.
func NewStore(programsPath, treePath, summaryDir, assetsDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		programs:   make(map[string]Node),
		summaryDir: summaryDir,
		assetsDir:  assetsDir,
		logger:     logger,
	}

	if programsPath != "" {
		if err := loadJSONFile(programsPath, &s.programs); err != nil {
			return nil, fmt.Errorf("loading programs data: %w", err)
		}
	}
	if treePath != "" {
		if err := loadJSONFile(treePath, &s.tree); err != nil {
			return nil, fmt.Errorf("loading tree structure: %w", err)
		}
	}

	logger.Info("atlas data loaded",
		zap.Int("nodes", len(s.programs)),
		zap.Int("programs", s.programCount()))
	return s, nil
}

func loadJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Store) programCount() int {
	total := 0
	for _, node := range s.programs {
		total += len(node.Programs)
	}
	return total
}

// Tree returns the navigation tree as loaded, or nil when absent.
func (s *Store) Tree() any {
	return s.tree
}

// NodeNames returns the loaded node names in sorted order.
func (s *Store) NodeNames() []string {
	names := make([]string, 0, len(s.programs))
	for name := range s.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Node returns the raw node data.
func (s *Store) Node(name string) (Node, bool) {
	node, ok := s.programs[name]
	return node, ok
}

// NodeOverview builds the lightweight program listing for a node.
func (s *Store) NodeOverview(name string) (NodeOverview, bool) {
	node, ok := s.programs[name]
	if !ok {
		return NodeOverview{}, false
	}

	summaries := make(map[string]ProgramSummary, len(node.Programs))
	for progName, prog := range node.Programs {
		summaries[progName] = ProgramSummary{
			TotalGenes:     prog.TotalGenes,
			Summary:        extractSummary(prog.Description),
			HasDescription: prog.Description != "",
			HasGenes:       len(prog.Genes) > 0,
			HasLoadings:    len(prog.Loadings) > 0,
			Images: map[string]string{
				"program_violins_cell_type": prog.ViolinsCellType,
				"program_violins_leiden":    prog.ViolinsLeiden,
				"program_umap_leiden":       prog.UMAPLeiden,
				"program_umap_activity":     prog.UMAPActivity,
			},
		}
	}

	return NodeOverview{
		NodeName:    node.NodeName,
		ReportFile:  node.ReportFile,
		ProcessedAt: node.ProcessedAt,
		Programs:    summaries,
		NodeInfo:    node.NodeInfo,
	}, true
}

// extractSummary pulls the short header text out of a full program
// description: everything before the "Evidence:" marker, else the first
// sentence, else a 200-character prefix.
func extractSummary(description string) string {
	if description == "" {
		return ""
	}
	if before, _, found := strings.Cut(description, "Evidence:"); found {
		return strings.TrimSpace(before)
	}
	if first, _, found := strings.Cut(description, "."); found {
		return first + "."
	}
	if len(description) > 200 {
		return description[:200] + "..."
	}
	return description
}

// Program returns one program of one node.
func (s *Store) Program(nodeName, programName string) (Program, bool) {
	node, ok := s.programs[nodeName]
	if !ok {
		return Program{}, false
	}
	prog, ok := node.Programs[programName]
	return prog, ok
}

// NodeSummary assembles the summary figures, program labels and cell type
// counts for a node from its summary directory. Returns false when the node
// has no summary directory at all.
func (s *Store) NodeSummary(name string) (NodeSummary, bool) {
	nodeDir, err := s.summaryPath(name)
	if err != nil {
		return NodeSummary{}, false
	}
	if _, err := os.Stat(nodeDir); err != nil {
		return NodeSummary{}, false
	}

	figures := make(map[string]string)
	for _, file := range summaryFigureFiles {
		if _, err := os.Stat(filepath.Join(nodeDir, file)); err == nil {
			key := strings.TrimSuffix(file, ".png")
			figures[key] = "/api/node-summary-image/" + name + "/" + file
		}
	}

	labels := make(map[string]any)
	if err := loadJSONFile(filepath.Join(nodeDir, "program_labels.json"), &labels); err != nil {
		s.logger.Warn("unreadable program labels", zap.String("node", name), zap.Error(err))
	}

	rawCounts := make(map[string]int)
	if err := loadJSONFile(filepath.Join(nodeDir, "cell_type_counts.json"), &rawCounts); err != nil {
		s.logger.Warn("unreadable cell type counts", zap.String("node", name), zap.Error(err))
	}
	counts := make(CellTypeCounts, 0, len(rawCounts))
	for cellType, count := range rawCounts {
		if count > 0 {
			counts = append(counts, CellTypeCount{Name: cellType, Count: count})
		}
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})

	geneCounts := make(map[string]int)
	if node, ok := s.programs[name]; ok {
		for progKey, prog := range node.Programs {
			if prog.TotalGenes > 0 {
				geneCounts[strings.TrimPrefix(progKey, "program_")] = prog.TotalGenes
			}
		}
	}

	return NodeSummary{
		NodeName:          name,
		Figures:           figures,
		ProgramLabels:     labels,
		ProgramGeneCounts: geneCounts,
		CellTypeCounts:    counts,
	}, true
}

// SummaryImagePath resolves a node summary figure to an absolute file path,
// rejecting names that would escape the node's directory.
func (s *Store) SummaryImagePath(nodeName, filename string) (string, error) {
	nodeDir, err := s.summaryPath(nodeName)
	if err != nil {
		return "", err
	}
	return secureJoin(nodeDir, filename)
}

// InteractivePlotPath resolves a named interactive plot for a node.
func (s *Store) InteractivePlotPath(nodeName, plotName string) (string, error) {
	file, ok := interactivePlots[plotName]
	if !ok {
		return "", fmt.Errorf("unknown plot %q", plotName)
	}
	nodeDir, err := s.summaryPath(nodeName)
	if err != nil {
		return "", err
	}
	path := filepath.Join(nodeDir, file)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("plot file missing: %w", err)
	}
	return path, nil
}

// AssetPath resolves a relative image path under the assets directory,
// rejecting traversal outside it.
func (s *Store) AssetPath(relPath string) (string, error) {
	return secureJoin(s.assetsDir, relPath)
}

func (s *Store) summaryPath(nodeName string) (string, error) {
	return secureJoin(s.summaryDir, nodeName)
}

// secureJoin joins an untrusted path element under base, rejecting dot-dot
// segments so requests cannot escape the data directory.
func secureJoin(base, unsafe string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("no base directory configured")
	}
	for _, part := range strings.Split(filepath.ToSlash(unsafe), "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes %q", unsafe, base)
		}
	}
	return filepath.Join(base, unsafe), nil
}

// Stats summarizes node and program counts across the atlas.
func (s *Store) Stats() Stats {
	stats := Stats{
		TotalNodes:        len(s.programs),
		NodesWithPrograms: []NodePrograms{},
	}
	for _, name := range s.NodeNames() {
		count := len(s.programs[name].Programs)
		stats.TotalPrograms += count
		if count > 0 {
			stats.NodesWithPrograms = append(stats.NodesWithPrograms, NodePrograms{
				NodeName:     name,
				ProgramCount: count,
			})
		}
	}
	return stats
}
