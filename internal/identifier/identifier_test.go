package identifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackVectorS1(t *testing.T) {
	id, err := Pack(1963, 54331, 19, "103")
	require.NoError(t, err)
	require.Equal(t, uint64(2210146812474530816), id)

	f := Unpack(id)
	require.Equal(t, Fields{Plate: 1963, MJD: 54331, Fiber: 19, Run2d: "103"}, f)
}

func TestPackVectorS2(t *testing.T) {
	id, err := Pack(4055, 55359, 408, "v5_7_0")
	require.NoError(t, err)
	require.Equal(t, uint64(4565636362342690816), id)
}

func TestLegacyRun2dStability(t *testing.T) {
	for _, legacy := range []string{"103", "104", "26"} {
		id, err := Pack(1, 50001, 1, legacy)
		require.NoError(t, err)
		f := Unpack(id)
		require.Equal(t, legacy, f.Run2d, "legacy run2d %s must round-trip as itself, not vN_M_P", legacy)
	}
}

func TestLowBitsInvariant(t *testing.T) {
	id, err := Pack(100, 51000, 5, "v5_1_0")
	require.NoError(t, err)
	require.Zero(t, id%1024)
}

func TestUnpackPackRoundTrip(t *testing.T) {
	for _, id := range []uint64{
		2210146812474530816,
		4565636362342690816,
	} {
		require.Zero(t, id%1024)
		f := Unpack(id)
		repacked, err := Pack(f.Plate, f.MJD, f.Fiber, f.Run2d)
		require.NoError(t, err)
		require.Equal(t, id, repacked)
	}
}

func TestPackEmptyRun2d(t *testing.T) {
	id, err := Pack(1, 50001, 1, "")
	require.NoError(t, err)
	f := Unpack(id)
	require.Equal(t, "", f.Run2d)
}

func TestPackRejectsOutOfRangeFields(t *testing.T) {
	_, err := Pack(1<<14, 50001, 1, "26")
	require.Error(t, err)

	_, err = Pack(1, 50000, 1, "26")
	require.Error(t, err, "mjd must be > 50000")

	_, err = Pack(1, 50001, 1<<12, "26")
	require.Error(t, err)

	_, err = Pack(1, 50001, 1, "v7_0_0")
	require.Error(t, err, "major version out of range")

	_, err = Pack(1, 50001, 1, "not-a-version")
	require.Error(t, err)
}

func TestCompareRun2d(t *testing.T) {
	cmp, err := CompareRun2d("v5_1_0", "v5_2_0")
	require.NoError(t, err)
	require.Negative(t, cmp)

	cmp, err = CompareRun2d("103", "103")
	require.NoError(t, err)
	require.Zero(t, cmp)
}
