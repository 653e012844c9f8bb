package sources

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

func TestNeedsTitle(t *testing.T) {
	assert.True(t, NeedsTitle(model.GroundingSource{URI: "https://www.bbc.com/news/1"}))
	assert.True(t, NeedsTitle(model.GroundingSource{Title: "bbc.com", URI: "https://www.bbc.com/news/1"}))
	assert.False(t, NeedsTitle(model.GroundingSource{Title: "Gaza port reopens", URI: "https://www.bbc.com/news/1"}))
	assert.False(t, NeedsTitle(model.GroundingSource{Title: "x"}))
}

func TestEnrich(t *testing.T) {
	e := NewReadabilityEnricher(0, time.Second)
	var calls int32
	e.fetch = func(pageURL string, _ time.Duration) (string, error) {
		atomic.AddInt32(&calls, 1)
		switch pageURL {
		case "https://a.org/1":
			return "  Article One  ", nil
		default:
			return "", errors.New("timeout")
		}
	}

	in := []model.GroundingSource{
		{Title: "a.org", URI: "https://a.org/1"},
		{Title: "Already titled page", URI: "https://b.org/2"},
		{Title: "c.org", URI: "https://c.org/3"},
	}
	out := e.Enrich(context.Background(), in)

	assert.Equal(t, []model.GroundingSource{
		{Title: "Article One", URI: "https://a.org/1"},
		{Title: "Already titled page", URI: "https://b.org/2"},
		{Title: "c.org", URI: "https://c.org/3"},
	}, out)
	assert.EqualValues(t, 2, calls)
	assert.Equal(t, "a.org", in[0].Title, "input is not modified")
}

func TestEnrich_RespectsMax(t *testing.T) {
	e := NewReadabilityEnricher(1, time.Second)
	var calls int32
	e.fetch = func(string, time.Duration) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "Title", nil
	}
	out := e.Enrich(context.Background(), []model.GroundingSource{
		{URI: "https://a.org/1"},
		{URI: "https://b.org/2"},
	})
	assert.EqualValues(t, 1, calls)
	assert.Equal(t, "Title", out[0].Title)
	assert.Equal(t, "", out[1].Title)
}
