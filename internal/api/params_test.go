package api

import (
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBoundsQuery_Defaults(t *testing.T) {
	q, err := url.ParseQuery("sw_lat=1&sw_lng=2&ne_lat=3&ne_lng=4")
	require.NoError(t, err)

	bq, err := parseBoundsQuery(q)
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, bq.Limit)
	assert.Zero(t, bq.Offset)
	assert.False(t, bq.VerifiedOnly)
	assert.Nil(t, bq.TypeIDs)
	assert.Nil(t, bq.Center)
}

func TestParseBoundsQuery_SwappedCorners(t *testing.T) {
	a, err := url.ParseQuery("sw_lat=1&sw_lng=2&ne_lat=3&ne_lng=4")
	require.NoError(t, err)
	b, err := url.ParseQuery("sw_lat=3&sw_lng=4&ne_lat=1&ne_lng=2")
	require.NoError(t, err)

	qa, err := parseBoundsQuery(a)
	require.NoError(t, err)
	qb, err := parseBoundsQuery(b)
	require.NoError(t, err)
	assert.Equal(t, qa.BBox, qb.BBox)
	assert.Equal(t, 1.0, qa.BBox.MinLat)
	assert.Equal(t, 4.0, qa.BBox.MaxLng)
}

func TestParseTypeIDs(t *testing.T) {
	ids, err := parseTypeIDs(" 1, 2,,3 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	_, err = parseTypeIDs("1,2.5")
	assert.Error(t, err)
}

func TestParseTypeIDs_Cap(t *testing.T) {
	toks := make([]string, maxTypeIDs)
	for i := range toks {
		toks[i] = strconv.Itoa(i + 1)
	}
	ids, err := parseTypeIDs(strings.Join(toks, ","))
	require.NoError(t, err)
	assert.Len(t, ids, maxTypeIDs)

	_, err = parseTypeIDs(strings.Join(toks, ",") + ",9999")
	require.Error(t, err)
	var pe *paramError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "at most 500 type IDs")
}

func TestOptionalBool(t *testing.T) {
	for raw, want := range map[string]bool{"": false, "true": true, "1": true, "Yes": true, "false": false, "0": false, "off": false} {
		got, err := optionalBool(url.Values{"v": {raw}}, "v")
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseTypeFilter(t *testing.T) {
	f, err := parseTypeFilter(url.Values{"category": {"forager"}, "search": {"ap"}})
	require.NoError(t, err)
	assert.Equal(t, "forager", f.Category)
	assert.Equal(t, "ap", f.Search)

	_, err = parseTypeFilter(url.Values{"search": {""}})
	assert.Error(t, err)

	_, err = parseTypeFilter(url.Values{"search": {"é"}})
	assert.Error(t, err, "length counts characters")
}
