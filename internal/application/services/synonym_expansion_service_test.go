package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynonymService(t *testing.T) *SynonymExpansionService {
	t.Helper()
	svc := NewSynonymExpansionService()
	err := svc.LoadJSON(strings.NewReader(`{
		"laptop": ["notebook", "ultrabook"],
		"car": ["automobile", "vehicle"]
	}`))
	require.NoError(t, err)
	return svc
}

func TestLookup_AnyMemberReturnsFullGroup(t *testing.T) {
	svc := newTestSynonymService(t)

	want := []string{"laptop", "notebook", "ultrabook"}
	for _, member := range want {
		assert.Equal(t, want, svc.Lookup(member), "lookup of %q", member)
	}
	assert.Nil(t, svc.Lookup("desk"))
}

func TestExpand_ReplacesEligibleTerm(t *testing.T) {
	svc := newTestSynonymService(t)

	got := svc.Expand("cheap laptop")
	assert.Equal(t, "cheap (laptop OR notebook OR ultrabook)", got)
}

func TestExpand_AliasExpandsToSameGroup(t *testing.T) {
	svc := newTestSynonymService(t)

	got := svc.Expand("notebook")
	assert.Equal(t, "(laptop OR notebook OR ultrabook)", got)
}

func TestExpand_ProtectsQuotedPhrases(t *testing.T) {
	svc := newTestSynonymService(t)

	got := svc.Expand(`"laptop stand" car`)
	assert.Equal(t, `"laptop stand" (car OR automobile OR vehicle)`, got)
}

func TestExpand_SkipsOperatorsExclusionsAndFields(t *testing.T) {
	svc := newTestSynonymService(t)

	got := svc.Expand("laptop OR -car brand:laptop NOT vehicle")
	assert.Equal(t, "(laptop OR notebook OR ultrabook) OR -car brand:laptop NOT (car OR automobile OR vehicle)", got)
}

func TestExpand_EmptyQueryUntouched(t *testing.T) {
	svc := newTestSynonymService(t)
	assert.Equal(t, "", svc.Expand(""))
	assert.Equal(t, "   ", svc.Expand("   "))
}

func TestAddGroup_IgnoresDegenerateGroups(t *testing.T) {
	svc := NewSynonymExpansionService()

	svc.AddGroup([]string{"solo"}, "")
	svc.AddGroup([]string{"dup", "DUP", " dup "}, "")
	svc.AddGroup([]string{}, "")

	assert.Empty(t, svc.Groups())
	assert.Nil(t, svc.Lookup("solo"))
}

func TestLoadCommaSeparated(t *testing.T) {
	svc := NewSynonymExpansionService()
	err := svc.LoadCommaSeparated(strings.NewReader(`
# comment line
tv, television, telly

phone, mobile
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"tv", "television", "telly"}, svc.Lookup("telly"))
	assert.Equal(t, []string{"phone", "mobile"}, svc.Lookup("phone"))
}

func TestLoadThesaurus(t *testing.T) {
	svc := NewSynonymExpansionService()
	err := svc.LoadThesaurus(strings.NewReader(`
notebook : laptop
ultrabook : laptop
telly : tv
`))
	require.NoError(t, err)

	group := svc.Lookup("notebook")
	assert.Equal(t, []string{"laptop", "notebook", "ultrabook"}, group)
	assert.Equal(t, []string{"tv", "telly"}, svc.Lookup("tv"))
}

func TestExportThesaurus_RoundTrips(t *testing.T) {
	svc := newTestSynonymService(t)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportThesaurus(&buf))

	assert.Equal(t, strings.Join([]string{
		"automobile : car",
		"notebook : laptop",
		"ultrabook : laptop",
		"vehicle : car",
	}, "\n")+"\n", buf.String())

	reloaded := NewSynonymExpansionService()
	require.NoError(t, reloaded.LoadThesaurus(&buf))
	assert.Equal(t, []string{"laptop", "notebook", "ultrabook"}, reloaded.Lookup("ultrabook"))
}
