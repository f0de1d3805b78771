package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type capturingCatalog struct {
	lastSQL string
	body    []byte
	err     error
}

func (c *capturingCatalog) Query(ctx context.Context, sql string) ([]byte, error) {
	c.lastSQL = sql
	return c.body, c.err
}

func testCtx() *Context {
	return &Context{
		Name:            "sdss_dr16",
		Release:         "dr16",
		MetadataRelease: "dr17",
		DefaultSurvey:   "eboss",
		Catalog:         "specObj",
	}
}

func TestQueryDefaultsToContextCatalogAndAddsKey(t *testing.T) {
	cat := &capturingCatalog{body: []byte("specobjid\n1\n")}
	s := NewSDSSStrategy(cat)

	_, err := s.Query(context.Background(), testCtx(), "ra,dec", "", "", nil)
	require.NoError(t, err)
	require.Contains(t, cat.lastSQL, "SELECT specobjid,ra,dec FROM specObj")
}

func TestQueryRetypesSignedSpecobjidBackToUnsigned(t *testing.T) {
	// -1 as the catalog's signed bigint spelling of a packed identifier
	// whose top bit (plate's high bits) is set.
	cat := &capturingCatalog{body: []byte("specobjid,ra\n-1,10.5\n")}
	s := NewSDSSStrategy(cat)

	body, err := s.Query(context.Background(), testCtx(), "ra", "", "", nil)
	require.NoError(t, err)
	require.Contains(t, string(body), "18446744073709551615,10.5")
	require.NotContains(t, string(body), "-1,10.5")
}

func TestQueryRetypesSpecobjidCaseInsensitiveColumn(t *testing.T) {
	cat := &capturingCatalog{body: []byte("SpecObjID,ra\n-2,1.0\n")}
	s := NewSDSSStrategy(cat)

	body, err := s.Query(context.Background(), testCtx(), "ra", "", "", nil)
	require.NoError(t, err)
	require.Contains(t, string(body), "18446744073709551614,1.0")
}

func TestQueryByIDCastsToSignedSpecobjid(t *testing.T) {
	cat := &capturingCatalog{body: []byte("specobjid\n1\n")}
	s := NewSDSSStrategy(cat)

	id := uint64(18446744073709551615) // -1 as int64
	_, err := s.Query(context.Background(), testCtx(), "", "", "", &id)
	require.NoError(t, err)
	require.Contains(t, cat.lastSQL, "WHERE specobjid = -1")
}

func TestQueryCondAlreadyOrderByIsNotWhereWrapped(t *testing.T) {
	cat := &capturingCatalog{body: []byte("specobjid\n1\n")}
	s := NewSDSSStrategy(cat)

	_, err := s.Query(context.Background(), testCtx(), "", "", "ORDER BY ra DESC", nil)
	require.NoError(t, err)
	require.Contains(t, cat.lastSQL, "ORDER BY ra DESC")
	require.NotContains(t, cat.lastSQL, "WHERE ORDER")
}

func TestQueryPlainCondGetsWhereWrapped(t *testing.T) {
	cat := &capturingCatalog{body: []byte("specobjid\n1\n")}
	s := NewSDSSStrategy(cat)

	_, err := s.Query(context.Background(), testCtx(), "", "", "ra > 10", nil)
	require.NoError(t, err)
	require.Contains(t, cat.lastSQL, "WHERE ra > 10")
}

func TestExpandIDRejectsFullyOpenTuple(t *testing.T) {
	cat := &capturingCatalog{}
	s := NewSDSSStrategy(cat)

	_, err := s.ExpandID(context.Background(), testCtx(), WildcardTuple{
		Plate: IntField{Any: true}, MJD: IntField{Any: true},
	})
	require.Error(t, err)
}

func TestExpandIDQueriesMetadataReleaseNotServingRelease(t *testing.T) {
	cat := &capturingCatalog{body: []byte("plate,mjd,fiberid,run2d,survey\n1963,54331,19,v5_13_0,eboss\n")}
	s := NewSDSSStrategy(cat)

	matches, err := s.ExpandID(context.Background(), testCtx(), WildcardTuple{
		Plate: IntField{Values: []int{1963}},
		MJD:   IntField{Any: true},
	})
	require.NoError(t, err)
	require.True(t, strings.Contains(cat.lastSQL, "dr17.specobj"))
	require.False(t, strings.Contains(cat.lastSQL, "dr16.specobj"))
	require.Len(t, matches, 1)
	require.Equal(t, 1963, matches[0].Plate)
	require.Equal(t, "v5_13_0", matches[0].Run2d)
}

func TestExpandIDBuildsPlateAndRun2dClauses(t *testing.T) {
	cat := &capturingCatalog{body: []byte("plate,mjd,fiberid,run2d,survey\n")}
	s := NewSDSSStrategy(cat)

	_, err := s.ExpandID(context.Background(), testCtx(), WildcardTuple{
		Plate: IntField{Values: []int{1963, 1964}},
		MJD:   IntField{Any: true},
		Run2d: StrField{Values: []string{"v5_13_0"}},
	})
	require.NoError(t, err)
	require.Contains(t, cat.lastSQL, "plate")
	require.Contains(t, cat.lastSQL, "run2d")
	require.NotContains(t, cat.lastSQL, "mjd =")
}
