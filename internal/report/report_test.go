package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/routediff/internal/histogram"
	"github.com/aman-zulfiqar/routediff/internal/models"
	"github.com/aman-zulfiqar/routediff/internal/replay"
)

func TestDetailWriter(t *testing.T) {
	var buf bytes.Buffer
	dw, err := NewDetailWriter(&buf)
	require.NoError(t, err)
	assert.Equal(t, detailHeader, buf.String())

	d := &models.Divergence{
		RecordIndex: 4,
		OldIndex:    1,
		NewIndex:    2,
		Request:     &models.SwapRequest{FromToken: "USDT", ToToken: "TRX", InAmount: "1000"},
		Old:         models.Path{Amount: models.StrPtr("100"), Pool: []string{"v2"}},
		New:         models.Path{Amount: models.StrPtr("150"), Pool: []string{"v2"}},
		DiffAmount:  0.5,
	}
	require.NoError(t, dw.RecordDivergence(context.Background(), d))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, detailHeader))
	assert.Contains(t, out, `origin log: {"fromToken":"USDT","toToken":"TRX"`)
	assert.Contains(t, out, "differ:0.5\n")
	assert.Contains(t, out, "index:4 path_index:1 new_path_index:2\n")
	assert.Contains(t, out, `old:{"amount":"100","pool":["v2"]}`)
	assert.Contains(t, out, `new:{"amount":"150","pool":["v2"]}`)

	// the header is written once
	require.NoError(t, dw.RecordDivergence(context.Background(), d))
	assert.Equal(t, 1, strings.Count(buf.String(), detailHeader))
}

func TestOpenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")

	for _, s := range []string{"first\n", "second\n"} {
		f, err := OpenAppend(path)
		require.NoError(t, err)
		_, err = f.WriteString(s)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(b))

	_, err = OpenAppend(filepath.Join(t.TempDir(), "missing", "x.txt"))
	assert.Error(t, err)
}

func TestWriteSummary(t *testing.T) {
	agg := histogram.NewAggregator()
	diff := 0.015
	agg.Fold(2, []models.CompareResult{{OldIndex: 0, DiffAmount: &diff}}, histogram.Timing{Old: time.Second, New: time.Second})

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteSummary(&buf, RunInfo{
		RunID:       "run-1",
		OldURL:      "http://old/routingInV2",
		NewURL:      "http://new/routingInV2",
		StartedAt:   start,
		Finished:    start.Add(time.Minute),
		Interrupted: true,
	}, agg.Finalize(), replay.Stats{LinesRead: 10, Processed: 1, Skipped: 9})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "=== run run-1 ===\n")
	assert.Contains(t, out, "started:2024-03-01T12:00:00Z finished:2024-03-01T12:01:00Z (interrupted)\n")
	assert.Contains(t, out, "Amount: diff\n count:1")
	assert.Contains(t, out, "1%~2%: 100.0000%")
	assert.Contains(t, out, "sum:2, diff:50.0000% same:50.0000%\n")
	assert.Contains(t, out, "lines:10 processed:1 skipped:9 parse_errors:0 duplicates:0 call_failures:0\n")
}

func TestResponseLog(t *testing.T) {
	var oldBuf, newBuf bytes.Buffer
	l := NewResponseLog(&oldBuf, &newBuf)

	req := &models.SwapRequest{FromToken: "USDT", ToToken: "TRX"}
	oldResp := &models.RouterResponse{Code: 0, Message: "SUCCESS", Data: []models.Path{{Amount: models.StrPtr("1")}}}
	newResp := &models.RouterResponse{Code: 0, Message: "SUCCESS"}

	require.NoError(t, l.LogResponses(0, req, oldResp, newResp))
	require.NoError(t, l.LogResponses(1, req, oldResp, newResp))

	sc := bufio.NewScanner(&oldBuf)
	var lines []responseEntry
	for sc.Scan() {
		var e responseEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		lines = append(lines, e)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, uint64(1), lines[1].Index)
	assert.Equal(t, "1", *lines[0].Response.Data[0].Amount)

	assert.Contains(t, newBuf.String(), `"message":"SUCCESS","data":null`)
}

func TestResponseLog_OneSide(t *testing.T) {
	var newBuf bytes.Buffer
	l := NewResponseLog(nil, &newBuf)
	require.NoError(t, l.LogResponses(0, &models.SwapRequest{}, &models.RouterResponse{}, &models.RouterResponse{}))
	assert.NotEmpty(t, newBuf.String())
}
