package expand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/errs"
)

type stubCatalog struct {
	csv []byte
}

func (s *stubCatalog) Query(ctx context.Context, sql string) ([]byte, error) {
	return s.csv, nil
}

func testContext() *dataset.Context {
	return &dataset.Context{
		Name:            "sdss_dr16",
		Release:         "dr16",
		MetadataRelease: "dr17",
		DefaultSurvey:   "eboss",
		PermittedRun2d:  []string{"v5_13_0"},
	}
}

func TestParseAllDigitsList(t *testing.T) {
	tokens, err := Parse("[123, 456, 789]")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		require.Equal(t, TokenPacked, tok.Kind)
	}
	require.Equal(t, uint64(123), tokens[0].Packed)
}

func TestParseSingleId(t *testing.T) {
	tokens, err := Parse("2210146812474530816")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, uint64(2210146812474530816), tokens[0].Packed)
}

func TestParseLiteralTuple(t *testing.T) {
	tokens, err := Parse("(1963,54331,19,v5_7_0)")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, TokenTuple, tokens[0].Kind)
	require.Equal(t, 1963, tokens[0].Tuple.Plate)
	require.Equal(t, 54331, tokens[0].Tuple.MJD)
	require.Equal(t, 19, tokens[0].Tuple.Fiber)
	require.Equal(t, "v5_7_0", tokens[0].Tuple.Run2d)
}

func TestParseWildcardTuplePadsToFour(t *testing.T) {
	tokens, err := Parse("(1963,54331)")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, TokenWildcard, tokens[0].Kind)
	require.True(t, tokens[0].Wildcard.Fiber.Any)
	require.True(t, tokens[0].Wildcard.Run2d.Any)
	require.Equal(t, []int{1963}, tokens[0].Wildcard.Plate.Values)
}

func TestParseMixedPackedAndTuple(t *testing.T) {
	tokens, err := Parse("[123456 (1963,54331,19,v5_7_0)]")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, TokenPacked, tokens[0].Kind)
	require.Equal(t, TokenTuple, tokens[1].Kind)
}

func TestParseFiberRange(t *testing.T) {
	tokens, err := Parse("(1963,54331,1-5,*)")
	require.NoError(t, err)
	require.Equal(t, TokenWildcard, tokens[0].Kind)
	require.True(t, tokens[0].Wildcard.Fiber.HasRange)
	require.Equal(t, 1, tokens[0].Wildcard.Fiber.Lo)
	require.Equal(t, 5, tokens[0].Wildcard.Fiber.Hi)
}

func TestParsePlateRangeRejected(t *testing.T) {
	_, err := Parse("(1963-1965,*,*,*)")
	require.Error(t, err)
	require.True(t, errs.IsParamError(err))
}

func TestParseMJDRangeRejected(t *testing.T) {
	_, err := Parse("(*,54331-54333,*,*)")
	require.Error(t, err)
	require.True(t, errs.IsParamError(err))
}

func TestExpandScenarioS3(t *testing.T) {
	csv := []byte("plate,mjd,fiberid,run2d,survey\n1963,54331,1,v5_13_0,eboss\n1963,54331,2,v5_13_0,eboss\n")
	strategy := dataset.NewSDSSStrategy(&stubCatalog{csv: csv})
	dctx := testContext()

	tokens, err := Parse("(1963,54331)")
	require.NoError(t, err)

	refs, err := Expand(context.Background(), strategy, dctx, tokens)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, 1, refs[0].Concrete.Fiber)
	require.Equal(t, 2, refs[1].Concrete.Fiber)
}

func TestExpandPreservesOrderAcrossMixedTokens(t *testing.T) {
	csv := []byte("plate,mjd,fiberid,run2d,survey\n1963,54331,1,v5_13_0,eboss\n")
	strategy := dataset.NewSDSSStrategy(&stubCatalog{csv: csv})
	dctx := testContext()

	tokens, err := Parse("[999 (1963,54331) 1000]")
	require.NoError(t, err)
	refs, err := Expand(context.Background(), strategy, dctx, tokens)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	require.True(t, refs[0].HasPacked)
	require.Equal(t, uint64(999), refs[0].Packed)
	require.False(t, refs[1].HasPacked)
	require.Equal(t, 1963, refs[1].Concrete.Plate)
	require.True(t, refs[2].HasPacked)
	require.Equal(t, uint64(1000), refs[2].Packed)
}
