package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aman-zulfiqar/routediff/internal/models"
	"github.com/aman-zulfiqar/routediff/internal/replay"
)

type responseEntry struct {
	Index    uint64                 `json:"index"`
	Request  *models.SwapRequest    `json:"request"`
	Response *models.RouterResponse `json:"response"`
}

// ResponseLog appends the raw old and new responses as JSON lines. Either
// writer may be nil to skip that side.
type ResponseLog struct {
	oldEnc *json.Encoder
	newEnc *json.Encoder
}

var _ replay.ResponseRecorder = (*ResponseLog)(nil)

func NewResponseLog(oldW, newW io.Writer) *ResponseLog {
	l := &ResponseLog{}
	if oldW != nil {
		l.oldEnc = json.NewEncoder(oldW)
	}
	if newW != nil {
		l.newEnc = json.NewEncoder(newW)
	}
	return l
}

func (l *ResponseLog) LogResponses(index uint64, req *models.SwapRequest, oldResp, newResp *models.RouterResponse) error {
	if l.oldEnc != nil {
		if err := l.oldEnc.Encode(responseEntry{Index: index, Request: req, Response: oldResp}); err != nil {
			return fmt.Errorf("write old response: %w", err)
		}
	}
	if l.newEnc != nil {
		if err := l.newEnc.Encode(responseEntry{Index: index, Request: req, Response: newResp}); err != nil {
			return fmt.Errorf("write new response: %w", err)
		}
	}
	return nil
}
