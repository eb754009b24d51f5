package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObject() map[string]interface{} {
	return map[string]interface{}{
		"title":   "Episode 1",
		"pubDate": "2020-01-10",
		"enclosure": map[string]interface{}{
			"url":  "http://example.com/1.mp3",
			"type": "audio/mpeg",
		},
		"itunes": map[string]interface{}{
			"image": map[string]interface{}{
				"attrs": map[string]interface{}{"href": "http://example.com/1.jpg"},
			},
			"duration": "31:00",
		},
		"categories": []interface{}{"tech", "news"},
	}
}

func TestCompileRules(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		include bool
		match   []string
		miss    []string
	}{
		{
			name:    "include all segments",
			pattern: "**",
			include: true,
			match:   []string{"title", "itunes.duration"},
		},
		{
			name:    "single segment star",
			pattern: "*",
			include: true,
			match:   []string{"title"},
			miss:    []string{"itunes.duration"},
		},
		{
			name:    "exclude prefix",
			pattern: "!itunes.*",
			include: false,
			match:   []string{"itunes.duration"},
			miss:    []string{"itunes.image.href", "title"},
		},
		{
			name:    "escaped bang is a literal include",
			pattern: `\!weird`,
			include: true,
			match:   []string{"!weird"},
			miss:    []string{"weird"},
		},
		{
			name:    "dots are literal",
			pattern: "enclosure.url",
			include: true,
			match:   []string{"enclosure.url"},
			miss:    []string{"enclosureXurl"},
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			rules, err := CompileRules([]string{tst.pattern})
			require.NoError(t, err)
			require.Len(t, rules, 1)

			assert.Equal(t, tst.include, rules[0].Include)
			for _, path := range tst.match {
				assert.True(t, rules[0].Match(path), path)
			}
			for _, path := range tst.miss {
				assert.False(t, rules[0].Match(path), path)
			}
		})
	}
}

func TestProjectIncludeAll(t *testing.T) {
	rules, err := CompileRules([]string{"**"})
	require.NoError(t, err)

	out := Project(testObject(), rules)
	assert.Equal(t, testObject(), out)
}

func TestProjectExcludeAllKeepsReservedKeys(t *testing.T) {
	rules, err := CompileRules([]string{"!**"})
	require.NoError(t, err)

	out := Project(testObject(), rules)

	// Everything is gone except the raw attrs node, which is structural
	// and ignores rules.
	assert.Equal(t, map[string]interface{}{
		"itunes": map[string]interface{}{
			"image": map[string]interface{}{
				"attrs": map[string]interface{}{"href": "http://example.com/1.jpg"},
			},
		},
	}, out)
}

func TestProjectLaterRuleWins(t *testing.T) {
	rules, err := CompileRules([]string{"**", "!itunes.**"})
	require.NoError(t, err)

	out := Project(testObject(), rules)

	_, ok := out["title"]
	assert.True(t, ok)

	itunes, ok := out["itunes"].(map[string]interface{})
	require.True(t, ok)

	// duration is excluded by the later rule, the reserved attrs node of
	// the image survives
	_, ok = itunes["duration"]
	assert.False(t, ok)
	_, ok = itunes["image"]
	assert.True(t, ok)
}

func TestProjectNarrowInclude(t *testing.T) {
	rules, err := CompileRules([]string{"!**", "enclosure.url"})
	require.NoError(t, err)

	out := Project(testObject(), rules)

	enclosure, ok := out["enclosure"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "http://example.com/1.mp3", enclosure["url"])
	_, ok = enclosure["type"]
	assert.False(t, ok)
}

func TestProjectListsKeepSurvivingElements(t *testing.T) {
	rules, err := CompileRules([]string{"categories"})
	require.NoError(t, err)

	out := Project(testObject(), rules)
	assert.Equal(t, []interface{}{"tech", "news"}, out["categories"])
}

func TestProjectEmptyRulesExcludesContent(t *testing.T) {
	out := Project(map[string]interface{}{"title": "x"}, nil)
	assert.Empty(t, out)
}

func TestCompileRulesInvalidPattern(t *testing.T) {
	// QuoteMeta makes stray regex characters inert, so arbitrary globs
	// compile cleanly
	rules, err := CompileRules([]string{"a(b"})
	require.NoError(t, err)
	assert.True(t, rules[0].Match("a(b"))
}
