package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"MerchantMMS/api/tddf/processors"
)

func TestSkipReasonCategories(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{
			name:       "identifier mismatch",
			err:        fmt.Errorf("%w: line 5 has identifier \"BH\"", processors.ErrIdentifierMismatch),
			wantPrefix: processors.SkipIdentifierMismatch,
		},
		{
			name:       "missing required field",
			err:        fmt.Errorf("%w: line 9 has blank merchant_account_number", processors.ErrMissingRequired),
			wantPrefix: processors.SkipParseError,
		},
		{
			name:       "anything else is transactional",
			err:        errors.New("connection reset by peer"),
			wantPrefix: processors.SkipTransactionalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := skipReasonFor(tt.err)
			if !strings.HasPrefix(reason, tt.wantPrefix+":") {
				t.Errorf("skipReasonFor(%v) = %q, want prefix %q", tt.err, reason, tt.wantPrefix)
			}
			category := strings.SplitN(reason, ":", 2)[0]
			if category != tt.wantPrefix {
				t.Errorf("reason category = %q, want %q", category, tt.wantPrefix)
			}
		})
	}
}
