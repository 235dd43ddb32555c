package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHuman(t *testing.T) {
	assert.Equal(t, "0 B", Human(0))
	assert.Equal(t, "512 B", Human(512))
	assert.Equal(t, "1.00 KB", Human(1024))
	assert.Equal(t, "1.50 MB", Human(3<<20/2))
	assert.Equal(t, "2.00 GB", Human(2<<30))
	assert.Equal(t, "1.00 TB", Human(1<<40))
}

func TestHumanRate(t *testing.T) {
	assert.Equal(t, "1.00 MB/s", HumanRate(1<<20))
	assert.Equal(t, "0 B/s", HumanRate(-5))
}
