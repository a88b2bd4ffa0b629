package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mnserr "github.com/mrz1836/mns/pkg/errors"
)

var (
	errPlain   = errors.New("plain failure")
	errDialing = errors.New("dial tcp 127.0.0.1:1248: connection refused")
)

type signerView struct {
	Address string `json:"address"`
}

func TestFormatter_RenderJSON(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	f := NewFormatter(FormatJSON)
	assert.True(t, f.IsJSON())
	assert.Equal(t, FormatJSON, f.Format())

	err := f.Render(buf, signerView{Address: "0xabc"}, func(io.Writer) error {
		t.Fatal("text view rendered in JSON mode")
		return nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address": "0xabc"}`, buf.String())
	assert.Contains(t, buf.String(), "\n  ")
}

func TestFormatter_RenderText(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	f := NewFormatter(FormatText)
	assert.False(t, f.IsJSON())

	require.NoError(t, f.RenderFields(buf, signerView{Address: "0xabc"}, func(fl *Fields) {
		fl.Add("Signer", "0xabc").Add("Network", "goerli (5)")
	}))
	assert.Equal(t, "Signer:  0xabc\nNetwork: goerli (5)\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, FormatJSON, ParseFormat(" JSON "))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatAuto, ParseFormat(""))
	assert.Equal(t, FormatAuto, ParseFormat("yaml"))
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()
	assert.Equal(t, FormatText, DetectFormat(&bytes.Buffer{}, FormatText))
	assert.Equal(t, FormatJSON, DetectFormat(&bytes.Buffer{}, FormatAuto))
	assert.Equal(t, FormatJSON, DetectFormat(&bytes.Buffer{}, ""))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, FormatJSON, DetectFormat(f, FormatAuto), "regular files are not terminals")
}

func TestFields(t *testing.T) {
	t.Parallel()
	var f Fields
	f.Add("State", "connected").Add("Account", "").Add("Target network", "goerli (5)")

	assert.Equal(t, 3, f.Len())
	assert.Equal(t,
		"State:          connected\n"+
			"Account:        -\n"+
			"Target network: goerli (5)\n",
		f.String())
}

func TestFormatError_Text(t *testing.T) {
	t.Parallel()
	err := mnserr.WithDetails(mnserr.ErrWrongNetwork, map[string]string{
		"expected": "goerli (5)",
		"actual":   "mainnet (1)",
	})

	buf := &bytes.Buffer{}
	require.NoError(t, FormatError(buf, err, FormatText))
	assert.Equal(t,
		"Error: wallet is connected to the wrong network\n"+
			"\nDetails:\n  actual: mainnet (1)\n  expected: goerli (5)\n"+
			"\nSuggestion: switch the network in your wallet and connect again\n",
		buf.String())
}

func TestFormatError_TextIncludesCause(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	require.NoError(t, FormatError(buf, mnserr.WithCause(mnserr.ErrExtensionUnavailable, errDialing), FormatText))
	assert.Contains(t, buf.String(), "Cause: dial tcp")
}

func TestFormatError_TextSkipsRepeatedCause(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	require.NoError(t, FormatError(buf, mnserr.Wrap(mnserr.ErrUserRejected, "connecting"), FormatText))
	assert.NotContains(t, buf.String(), "Cause:")
	assert.Contains(t, buf.String(), "Error: connecting: wallet connection request was rejected")
}

func TestFormatError_JSON(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	require.NoError(t, FormatError(buf, mnserr.ErrExtensionUnavailable, FormatJSON))

	var out ErrorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "EXTENSION_UNAVAILABLE", out.Error.Code)
	assert.Equal(t, mnserr.ExitUnavailable, out.Error.ExitCode)
	assert.NotEmpty(t, out.Error.Suggestion)
}

func TestFormatError_Generic(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	require.NoError(t, FormatError(buf, errPlain, FormatText))
	assert.Equal(t, "Error: plain failure\n", buf.String())

	detail := NewErrorDetail(errPlain)
	assert.Equal(t, "GENERAL_ERROR", detail.Code)
	assert.Equal(t, mnserr.ExitGeneral, detail.ExitCode)
}

func TestFormatError_Nil(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	require.NoError(t, FormatError(buf, nil, FormatJSON))
	assert.Empty(t, buf.String())
}

func TestFormatSuccess(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	require.NoError(t, FormatSuccess(buf, "wallet disconnected", FormatJSON))
	assert.JSONEq(t, `{"status":"success","message":"wallet disconnected"}`, buf.String())

	buf.Reset()
	require.NoError(t, FormatSuccess(buf, "wallet disconnected", FormatText))
	assert.Equal(t, "wallet disconnected\n", buf.String())
}

func TestMessages(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	Info(buf, "info")
	Warnf(buf, "warn %d", 1)
	Successf(buf, "done %s", "now")
	assert.Equal(t, "ℹ️  info\n⚠️  warn 1\n✅ done now\n", buf.String())
}
