package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"equipix/compress"
)

func TestObserveResult(t *testing.T) {
	accepted := testutil.ToFloat64(imagesTotal.WithLabelValues("accepted"))
	degraded := testutil.ToFloat64(imagesTotal.WithLabelValues("degraded"))
	decode := testutil.ToFloat64(degradedTotal.WithLabelValues("decode_failed"))
	in := testutil.ToFloat64(inputBytes)
	out := testutil.ToFloat64(outputBytes)

	src := compress.SourceImage{Name: "a.jpg", Data: make([]byte, 1000)}
	ObserveResult(src, &compress.Result{Size: 400, Attempts: make([]compress.Attempt, 2)})
	ObserveResult(src, &compress.Result{Size: 1000, Degraded: true, Reason: compress.ReasonDecodeFailed})
	ObserveResult(src, nil)

	if got := testutil.ToFloat64(imagesTotal.WithLabelValues("accepted")) - accepted; got != 1 {
		t.Errorf("accepted delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(imagesTotal.WithLabelValues("degraded")) - degraded; got != 1 {
		t.Errorf("degraded delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(degradedTotal.WithLabelValues("decode_failed")) - decode; got != 1 {
		t.Errorf("decode_failed delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(inputBytes) - in; got != 2000 {
		t.Errorf("input bytes delta = %v, want 2000", got)
	}
	if got := testutil.ToFloat64(outputBytes) - out; got != 1400 {
		t.Errorf("output bytes delta = %v, want 1400", got)
	}
}

func TestBatchRejected(t *testing.T) {
	before := testutil.ToFloat64(batchesRejected)
	BatchRejected()
	if got := testutil.ToFloat64(batchesRejected) - before; got != 1 {
		t.Errorf("rejected delta = %v, want 1", got)
	}
}
