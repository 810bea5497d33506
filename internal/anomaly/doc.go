// Package anomaly collects out-of-band observations made during
// fetching, such as truncated bodies, suspicious status sequences, or
// unexpectedly empty responses. Observations are reported to a Sink so
// the fetch path never blocks on how they are recorded.
package anomaly
