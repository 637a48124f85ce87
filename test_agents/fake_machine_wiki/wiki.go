package main

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Article is one troubleshooting page of the machine wiki.
type Article struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	MachineType  string   `json:"machineType"`
	FaultType    string   `json:"faultType"`
	Symptoms     string   `json:"symptoms"`
	LikelyCauses []string `json:"likelyCauses"`
	Severity     string   `json:"severity"`
}

// Hit is an article with its match score.
type Hit struct {
	Article
	Score int `json:"score"`
}

// KnowledgeBase answers keyword queries over a fixed set of articles.
type KnowledgeBase struct {
	articles []Article
	terms    [][]string
}

func NewKnowledgeBase(articles ...Article) *KnowledgeBase {
	kb := &KnowledgeBase{articles: articles, terms: make([][]string, len(articles))}
	for i, a := range articles {
		kb.terms[i] = tokenize(strings.Join([]string{a.Title, a.MachineType, a.FaultType, a.Symptoms}, " "))
	}
	return kb
}

// Search ranks articles by how many query terms they contain. Ties keep
// article order.
func (kb *KnowledgeBase) Search(query string, top int) []Hit {
	if top <= 0 {
		top = 3
	}
	want := make(map[string]bool)
	for _, t := range tokenize(query) {
		want[t] = true
	}

	var hits []Hit
	for i, a := range kb.articles {
		score := 0
		for _, t := range kb.terms[i] {
			if want[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, Hit{Article: a, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > top {
		hits = hits[:top]
	}
	return hits
}

// tokenize lowercases s and splits it on anything that is not a letter or digit.
// Underscored identifiers like curing_temperature_excessive yield their parts.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func sampleArticles() []Article {
	return []Article{
		{
			ID:          "kb-curing-001",
			Title:       "Curing temperature above threshold",
			MachineType: "tire_curing_press",
			FaultType:   "curing_temperature_excessive",
			Symptoms:    "Curing temperature reading exceeds the warning threshold during the cure cycle",
			LikelyCauses: []string{
				"Heating element malfunction",
				"Thermocouple drift or failure",
				"Steam pressure regulator fault",
			},
			Severity: "High",
		},
		{
			ID:          "kb-curing-002",
			Title:       "Curing pressure drop",
			MachineType: "tire_curing_press",
			FaultType:   "curing_pressure_low",
			Symptoms:    "Bladder pressure falls below the warning threshold",
			LikelyCauses: []string{
				"Bladder leak",
				"Hydraulic valve wear",
			},
			Severity: "Medium",
		},
		{
			ID:          "kb-mixing-001",
			Title:       "Mixing temperature excessive",
			MachineType: "banbury_mixer",
			FaultType:   "mixing_temperature_excessive",
			Symptoms:    "Batch temperature rises above the mixing limit",
			LikelyCauses: []string{
				"Cooling water flow restricted",
				"Rotor speed too high",
				"Incorrect compound recipe",
			},
			Severity: "High",
		},
	}
}

// newMCPServer exposes kb the way a search knowledge base MCP endpoint does.
func newMCPServer(kb *KnowledgeBase) *server.MCPServer {
	s := server.NewMCPServer("machine-wiki", "0.1.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcp.NewTool("knowledge_base_retrieve",
			mcp.WithDescription("Search the machine wiki for fault types, symptoms and likely causes"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or keyword query")),
			mcp.WithNumber("top", mcp.Description("Maximum number of articles, default 3")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			query, err := req.RequireString("query")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			hits := kb.Search(query, req.GetInt("top", 3))
			b, err := json.Marshal(map[string]any{"query": query, "results": hits})
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(string(b)), nil
		},
	)
	return s
}
