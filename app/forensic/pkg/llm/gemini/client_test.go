package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/llm"
	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

func TestToGenAISchema(t *testing.T) {
	s := llm.Object(map[string]*llm.Schema{
		"address":  llm.String("full address"),
		"latitude": llm.Number("lat", -90, 90).AsNullable(),
		"tier":     llm.Enum("tier", "precise", "region"),
		"clues":    llm.Array("clues", llm.String("clue")),
	}, []string{"address", "latitude", "tier", "clues"}, "address")

	out := ToGenAISchema(s)
	require.NotNil(t, out)
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Equal(t, []string{"address"}, out.Required)
	assert.Equal(t, []string{"address", "latitude", "tier", "clues"}, out.PropertyOrdering)

	lat := out.Properties["latitude"]
	assert.Equal(t, genai.TypeNumber, lat.Type)
	require.NotNil(t, lat.Nullable)
	assert.True(t, *lat.Nullable)
	assert.Equal(t, 90.0, *lat.Maximum)

	assert.Equal(t, []string{"precise", "region"}, out.Properties["tier"].Enum)
	assert.Equal(t, genai.TypeArray, out.Properties["clues"].Type)
	assert.Equal(t, genai.TypeString, out.Properties["clues"].Items.Type)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestComplete_GroundedResponse(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Rimal, Gaza City. 31.52, 34.44"}]},
				"groundingMetadata": {"groundingChunks": [
					{"web": {"uri": "https://example.org/a", "title": "example.org"}},
					{"web": {"uri": "https://example.org/a", "title": "example.org"}}
				]}
			}]
		}`)
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &llm.Request{
		Prompt:       "where",
		Media:        &llm.Media{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"},
		WebGrounding: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Rimal, Gaza City. 31.52, 34.44", resp.Text)
	assert.Equal(t, []model.GroundingSource{{Title: "example.org", URI: "https://example.org/a"}}, resp.Sources)

	assert.True(t, strings.Contains(body, "googleSearch"), body)
	assert.True(t, strings.Contains(body, "inlineData"), body)
}

func TestBuildConfig_SchemaWithGrounding(t *testing.T) {
	schema := llm.Object(map[string]*llm.Schema{"a": llm.String("a")}, []string{"a"}, "a")

	c := &Client{caps: llm.Capabilities{StructuredOutput: true, WebGrounding: true}}
	cfg := c.buildConfig(&llm.Request{WebGrounding: true, Schema: schema})
	assert.Nil(t, cfg.ResponseSchema, "grounded calls fall back to free text without combined support")
	assert.Len(t, cfg.Tools, 1)

	c.caps.GroundedStructuredOutput = true
	cfg = c.buildConfig(&llm.Request{WebGrounding: true, Schema: schema, ThinkingBudget: 1024})
	assert.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ThinkingConfig)
	assert.EqualValues(t, 1024, *cfg.ThinkingConfig.ThinkingBudget)
}
