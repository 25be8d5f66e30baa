package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello, World! 2024":         "hello-world-2024",
		"My Post":                    "my-post",
		"  --Leading & trailing--  ": "leading-trailing",
		"already-a-slug":             "already-a-slug",
		"Crème brûlée":               "cr-me-br-l-e",
		"../../etc/passwd":           "etc-passwd",
		"!!!":                        "",
		"":                           "",
		"UPPER_snake_Case":           "upper-snake-case",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello, World! 2024",
		"--x--y--",
		"Ünïcödé Title",
		"a  b\tc\nd",
		"../secret",
		strings.Repeat("ab-", 50),
	}
	for _, in := range inputs {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once), "input %q", in)
	}
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, ReadingTime(""))
	assert.Equal(t, 1, ReadingTime("one two three"))
	assert.Equal(t, 1, ReadingTime(strings.Repeat("w ", 329)))
	assert.Equal(t, 2, ReadingTime(strings.Repeat("w ", 330)))
	assert.Equal(t, 5, ReadingTime(strings.Repeat("w ", 1100)))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "héllo", Excerpt("héllo world", 5))
	assert.Equal(t, "short", Excerpt("short", 140))
}
