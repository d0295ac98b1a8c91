package atlas

import "testing"

func fixtureIndex(t *testing.T) *GeneIndex {
	t.Helper()
	ix, err := NewGeneIndex(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ix.Close() })

	if err := ix.Build(fixtureStore(t)); err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestSearchGene(t *testing.T) {
	ix := fixtureIndex(t)

	hits, err := ix.SearchGene("ACTA2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Node != "C1" || hits[0].Program != "program_1" {
		t.Errorf("hit: %+v", hits[0])
	}
	if hits[0].TotalGenes != 2 {
		t.Errorf("total genes: %d", hits[0].TotalGenes)
	}
}

func TestSearchGeneCaseInsensitive(t *testing.T) {
	ix := fixtureIndex(t)

	hits, err := ix.SearchGene("scgb1a1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Program != "program_0" {
		t.Errorf("case-insensitive lookup failed: %+v", hits)
	}
	if hits[0].Summary != "Airway epithelium program." {
		t.Errorf("summary carried into the index: %q", hits[0].Summary)
	}
}

func TestSearchGeneNoMatches(t *testing.T) {
	ix := fixtureIndex(t)

	hits, err := ix.SearchGene("NOPE1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if hits == nil {
		t.Fatal("hits must be an empty slice, not nil")
	}
	if len(hits) != 0 {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestSearchGeneLimit(t *testing.T) {
	ix := fixtureIndex(t)

	// MUC5B and SCGB1A1 live in the same program; limit applies per query.
	hits, err := ix.SearchGene("MUC5B", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("limit not applied: %+v", hits)
	}
}

func TestBuildReplacesContents(t *testing.T) {
	ix := fixtureIndex(t)

	// A second build must not duplicate rows.
	if err := ix.Build(fixtureStore(t)); err != nil {
		t.Fatal(err)
	}
	hits, err := ix.SearchGene("ACTA2", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("rebuild duplicated rows: %+v", hits)
	}
}
