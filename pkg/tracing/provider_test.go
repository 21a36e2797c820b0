package tracing_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/openmined/mine/pkg/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cases := []struct {
		desc    string
		svcName string
		url     url.URL
		err     bool
	}{
		{
			desc:    "empty url",
			svcName: "mine",
			err:     true,
		},
		{
			desc: "empty service name",
			url:  url.URL{Scheme: "http", Host: "localhost:4318"},
			err:  true,
		},
		{
			desc:    "valid collector",
			svcName: "mine",
			url:     url.URL{Scheme: "http", Host: "localhost:4318", Path: "/v1/traces"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			tp, err := tracing.NewProvider(context.Background(), tc.svcName, tc.url, "test", 1)
			if tc.err {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tp.Tracer("mine"))
			assert.NoError(t, tp.Shutdown(context.Background()))
		})
	}
}
