package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryCodes(t *testing.T) {
	// Wire codes are fixed by the persisted format and must not drift.
	assert.Equal(t, 0, Work.Code())
	assert.Equal(t, 1, Family.Code())
	assert.Equal(t, 2, Friendship.Code())
	assert.Equal(t, 3, Happiness.Code())
	assert.Equal(t, 4, Other.Code())

	for code := 0; code <= 4; code++ {
		cat, err := CategoryFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, code, cat.Code())
	}

	_, err := CategoryFromCode(5)
	assert.Error(t, err)
}

func TestLineRoundTrip(t *testing.T) {
	item := Item{
		Content:   "met alice for coffee",
		Type:      Mid,
		Category:  Friendship,
		Timestamp: "1700000000",
	}

	line := item.Line()
	assert.Equal(t, "met alice for coffee|2|1700000000", line)

	parsed, err := ParseLine(line, Mid)
	require.NoError(t, err)
	assert.Equal(t, item, parsed)
}

func TestParseLineContentWithSeparator(t *testing.T) {
	item := Item{
		Content:   "pipeline a|b finished",
		Type:      Short,
		Category:  Work,
		Timestamp: "1700000001",
	}

	parsed, err := ParseLine(item.Line(), Short)
	require.NoError(t, err)
	assert.Equal(t, item, parsed)
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{"", "no separators", "content|notanint|123", "content|9|123"} {
		_, err := ParseLine(line, Short)
		assert.Error(t, err, "line %q", line)
	}
}

func TestNewItemTimestamp(t *testing.T) {
	item := NewItem("x", Short, Other)
	require.NotEmpty(t, item.Timestamp)
	assert.False(t, item.CreatedAt().IsZero())
}

func TestParseTypeAndCategory(t *testing.T) {
	typ, err := ParseType("LONG")
	require.NoError(t, err)
	assert.Equal(t, Long, typ)

	_, err = ParseType("eternal")
	assert.Error(t, err)

	cat, err := ParseCategory("work")
	require.NoError(t, err)
	assert.Equal(t, Work, cat)

	// Empty means "let the classifier decide".
	cat, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, Other, cat)
}
