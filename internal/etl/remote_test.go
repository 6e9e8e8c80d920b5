package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BartekS5/treemigrate/internal/platform/memory"
	"github.com/BartekS5/treemigrate/internal/platform/salesforce"
	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyOrg accepts the first insert chunk and fails every later one.
type flakyOrg struct {
	mu      sync.Mutex
	posts   int
	created []string
	deleted []string
}

func (o *flakyOrg) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		_, _ = io.WriteString(w, `{"done":true,"records":[]}`)
	case http.MethodPost:
		o.posts++
		if o.posts > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `[{"errorCode":"SERVER_UNAVAILABLE","message":"try again later"}]`)
			return
		}
		var body struct {
			Records []json.RawMessage `json:"records"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		results := make([]map[string]interface{}, len(body.Records))
		for i := range results {
			id := fmt.Sprintf("001T%011d", len(o.created))
			o.created = append(o.created, id)
			results[i] = map[string]interface{}{"id": id, "success": true}
		}
		_ = json.NewEncoder(w).Encode(results)
	case http.MethodDelete:
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		o.deleted = append(o.deleted, ids...)
		results := make([]map[string]interface{}, len(ids))
		for i, id := range ids {
			results[i] = map[string]interface{}{"id": id, "success": true}
		}
		_ = json.NewEncoder(w).Encode(results)
	}
}

func TestRunRollsBackChunksWrittenBeforeTransportError(t *testing.T) {
	source := memory.NewStandard('S')
	accounts := make([]*models.Record, 250)
	for i := range accounts {
		accounts[i] = models.RecordOf("Name", fmt.Sprintf("Account %d", i))
	}
	ids := source.Seed("Account", accounts...)

	org := &flakyOrg{}
	srv := httptest.NewServer(org)
	defer srv.Close()
	target := salesforce.NewClient("uat", srv.URL, "token", "")

	cfg := &models.ExportConfig{TreeConfig: &models.TreeConfig{APIName: "Account", RecordIDs: ids}}
	p := NewPipeline(source, target, cfg)
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_UNAVAILABLE")

	org.mu.Lock()
	defer org.mu.Unlock()
	assert.Equal(t, 2, org.posts)
	require.Len(t, org.created, 200)
	assert.ElementsMatch(t, org.created, org.deleted)
	assert.Zero(t, p.Ledger().Len())
}
