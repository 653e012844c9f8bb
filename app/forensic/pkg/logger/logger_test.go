package logger

import (
	"bytes"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestCustomFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&CustomFormatter{})

	l.WithField("phase", "clues").Warn("something odd")

	out := buf.String()
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "something odd phase=clues")
}

func TestKratosLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&CustomFormatter{})

	helper := log.NewHelper(NewKratosLogger(l))
	helper.Errorf("upstream down: %s", "dns")

	out := buf.String()
	assert.Contains(t, out, "[ERRO]")
	assert.Contains(t, out, "upstream down: dns")
}
