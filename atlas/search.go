package atlas

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// GeneIndex is a gene → program lookup table built from the loaded atlas at
// startup. Backed by SQLite so membership queries over millions of
// gene/program pairs stay cheap.
type GeneIndex struct {
	db *sql.DB
}

// GeneHit is one program containing the searched gene.
type GeneHit struct {
	Node       string `json:"node"`
	Program    string `json:"program"`
	TotalGenes int    `json:"total_genes"`
	Summary    string `json:"summary"`
}

// DefaultSearchLimit caps gene search results when the caller passes no
// limit of its own.
const DefaultSearchLimit = 50

// NewGeneIndex opens (or creates) the index database at path. Use
// ":memory:" for an ephemeral index.
func NewGeneIndex(path string) (*GeneIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gene index: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping gene index: %w", err)
	}

	ix := &GeneIndex{db: db}
	if err := ix.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize gene index: %w", err)
	}
	return ix, nil
}

func (ix *GeneIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS program_genes (
		gene TEXT NOT NULL,
		node TEXT NOT NULL,
		program TEXT NOT NULL,
		total_genes INTEGER NOT NULL,
		summary TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_program_genes_gene ON program_genes(gene);
	`
	_, err := ix.db.Exec(schema)
	return err
}

// Build replaces the index contents with the gene lists of every program in
// the store. Gene names are stored uppercased so lookups are
// case-insensitive.
func (ix *GeneIndex) Build(store *Store) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin index build: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM program_genes`); err != nil {
		return fmt.Errorf("failed to clear gene index: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO program_genes (gene, node, program, total_genes, summary) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare index insert: %w", err)
	}
	defer stmt.Close()

	for _, nodeName := range store.NodeNames() {
		node, _ := store.Node(nodeName)
		for progName, prog := range node.Programs {
			summary := extractSummary(prog.Description)
			for _, gene := range prog.Genes {
				if gene == "" {
					continue
				}
				if _, err := stmt.Exec(strings.ToUpper(gene), nodeName, progName, prog.TotalGenes, summary); err != nil {
					return fmt.Errorf("failed to index gene %s: %w", gene, err)
				}
			}
		}
	}

	return tx.Commit()
}

// SearchGene returns the programs containing the gene, case-insensitively,
// up to limit hits in node/program order.
func (ix *GeneIndex) SearchGene(gene string, limit int) ([]GeneHit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	query := `
	SELECT node, program, total_genes, summary
	FROM program_genes
	WHERE gene = ?
	ORDER BY node, program
	LIMIT ?
	`
	rows, err := ix.db.Query(query, strings.ToUpper(gene), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []GeneHit{}
	for rows.Next() {
		var hit GeneHit
		if err := rows.Scan(&hit.Node, &hit.Program, &hit.TotalGenes, &hit.Summary); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (ix *GeneIndex) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}
