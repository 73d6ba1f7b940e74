// Package resolver maps free-text spreadsheet references onto ledger entities.
package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/importerr"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
)

// MemberPolicy decides which candidate wins when a name is ambiguous.
type MemberPolicy string

const (
	// PolicyClosest picks the highest scoring candidate. Equal scores go to the
	// smaller edit distance, then to store order.
	PolicyClosest MemberPolicy = "closest"
	// PolicyStoreOrder picks the first candidate the directory returned.
	PolicyStoreOrder MemberPolicy = "store_order"
)

// ParseMemberPolicy falls back to PolicyClosest for unknown values.
func ParseMemberPolicy(raw string) MemberPolicy {
	if MemberPolicy(strings.ToLower(strings.TrimSpace(raw))) == PolicyStoreOrder {
		return PolicyStoreOrder
	}
	return PolicyClosest
}

const defaultCandidateLimit = 10

// Candidate is a member that matched a spreadsheet name.
type Candidate struct {
	Member ledger.Member `json:"member"`
	// Score is 0-100, higher is closer.
	Score    int  `json:"score"`
	Distance int  `json:"distance"`
	Exact    bool `json:"exact"`
}

// MemberMatch is the outcome of a successful member lookup.
type MemberMatch struct {
	Member     ledger.Member `json:"member"`
	Query      string        `json:"query"`
	Candidates []Candidate   `json:"candidates"`
	// Ambiguous is true when more than one member matched.
	Ambiguous bool `json:"ambiguous"`
	Exact     bool `json:"exact"`
}

// MemberResolver finds the member a spreadsheet row refers to.
type MemberResolver struct {
	directory ledger.MemberDirectory
	policy    MemberPolicy
	limit     int
}

// NewMemberResolver creates a resolver over the member directory.
func NewMemberResolver(directory ledger.MemberDirectory, policy MemberPolicy) *MemberResolver {
	if policy == "" {
		policy = PolicyClosest
	}
	return &MemberResolver{directory: directory, policy: policy, limit: defaultCandidateLimit}
}

// Resolve tries an exact name match first and falls back to a
// case-insensitive substring search. Honorifics are stripped before lookup.
func (r *MemberResolver) Resolve(ctx context.Context, name string) (*MemberMatch, error) {
	raw := strings.Join(strings.Fields(name), " ")
	query := normalizer.CleanName(raw)
	if query == "" {
		return nil, importerr.New(importerr.KindMemberNotFound, "Nama Anggota", "nama anggota kosong")
	}

	exact, err := r.exact(ctx, raw, query)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		candidates := make([]Candidate, len(exact))
		for i, m := range exact {
			candidates[i] = Candidate{Member: m, Score: 100, Exact: true}
		}
		return r.pick(query, candidates, true), nil
	}

	found, err := r.directory.SearchMembers(ctx, query, r.limit)
	if err != nil {
		return nil, importerr.Wrap(importerr.KindLedgerRead, "Nama Anggota", "gagal mencari anggota", err)
	}
	if len(found) == 0 {
		return nil, importerr.MemberNotFound(raw)
	}

	candidates := make([]Candidate, len(found))
	for i, m := range found {
		candidates[i] = scoreCandidate(query, m)
	}
	if r.policy == PolicyClosest {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].Distance < candidates[j].Distance
		})
	}
	return r.pick(query, candidates, false), nil
}

func (r *MemberResolver) exact(ctx context.Context, raw, query string) ([]ledger.Member, error) {
	names := []string{raw}
	if query != raw {
		names = append(names, query)
	}
	for _, n := range names {
		members, err := r.directory.FindMembersByExactName(ctx, n)
		if err != nil {
			return nil, importerr.Wrap(importerr.KindLedgerRead, "Nama Anggota", "gagal mencari anggota", err)
		}
		if len(members) > 0 {
			return members, nil
		}
	}
	return nil, nil
}

func (r *MemberResolver) pick(query string, candidates []Candidate, exact bool) *MemberMatch {
	return &MemberMatch{
		Member:     candidates[0].Member,
		Query:      query,
		Candidates: candidates,
		Ambiguous:  len(candidates) > 1,
		Exact:      exact,
	}
}

func scoreCandidate(query string, m ledger.Member) Candidate {
	name := normalizer.CleanName(m.Name)
	return Candidate{
		Member:   m,
		Score:    nameScore(query, name),
		Distance: fuzzy.LevenshteinDistance(strings.ToLower(query), strings.ToLower(name)),
		Exact:    strings.EqualFold(query, name),
	}
}

// nameScore rates how close a member name is to the query (0-100).
func nameScore(query, name string) int {
	q, n := strings.ToLower(query), strings.ToLower(name)
	if q == n {
		return 100
	}
	if q == "" || n == "" {
		return 0
	}
	if strings.Contains(n, q) {
		return 75 + (25 * len(q) / len(n))
	}
	if strings.Contains(q, n) {
		return 75 + (25 * len(n) / len(q))
	}

	maxLen := max(len(q), len(n))
	distance := fuzzy.LevenshteinDistance(q, n)
	score := 100 * (maxLen - distance) / maxLen

	// Subsequence matches ("bdi sntso" in "budi santoso") rank by edit distance.
	if rank := fuzzy.RankMatchNormalizedFold(q, n); rank >= 0 && rank < len(n) {
		if s := 70 - (rank * 40 / len(n)); s > score {
			score = s
		}
	}
	if score < 0 {
		return 0
	}
	return score
}
