package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		content string
		want    Category
	}{
		{"公司项目进展", Work},
		{"Quarterly project review went well", Work},
		{"父母来看我了", Family},
		{"dinner with family tonight", Family},
		{"周末和朋友聚会", Friendship},
		{"今天很开心", Happiness},
		{"the sky was grey", Other},
		{"", Other},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.content), "content %q", tc.content)
	}
}

func TestClassifyStable(t *testing.T) {
	first := Classify("公司项目进展")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify("公司项目进展"))
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Contains both a work and a friendship keyword; work is tested first.
	assert.Equal(t, Work, Classify("项目结束后和朋友吃饭"))
}
