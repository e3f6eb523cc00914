package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinArtistNames(t *testing.T) {
	assert.Equal(t, "Alpha & Beta", JoinArtistNames([]string{"Alpha", "Beta"}))
	assert.Equal(t, "Solo", JoinArtistNames([]string{"Solo"}))
	assert.Equal(t, UnknownArtist, JoinArtistNames(nil))
	assert.Equal(t, UnknownArtist, JoinArtistNames([]string{}))
}

func TestPrimaryArtistName(t *testing.T) {
	assert.Equal(t, "Alpha", PrimaryArtistName([]string{"Alpha", "Beta", "Gamma"}))
	assert.Equal(t, UnknownArtist, PrimaryArtistName(nil))
}
