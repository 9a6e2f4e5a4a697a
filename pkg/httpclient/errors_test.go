// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriesExhausted(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := retriesExhausted(429, 3, 2*time.Second, cause)

	assert.Equal(t, 429, err.StatusCode)
	assert.Contains(t, err.Error(), "max HTTP retries (3) exceeded")
	assert.Contains(t, err.Error(), "retry after 2s")
	assert.True(t, err.IsRetryable())
	require.ErrorIs(t, err, cause)
}

func TestRetryableErrorWithoutDelay(t *testing.T) {
	err := &RetryableError{StatusCode: 503, Message: "service unavailable"}

	assert.Equal(t, "HTTP 503: service unavailable", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}
