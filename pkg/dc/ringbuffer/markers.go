package ringbuffer

import "bytes"

// SensusClassicParams configures the Reefnet Sensus classic extractor.
// Dives are delimited by a 7-byte start marker (0xFF, 5 don't-care bytes,
// 0xFE) and end where 17 consecutive "shallow" depth samples are found
// (adjusted-FSW < 13+3), skipping the interleaved temperature byte that
// appears every 6th sample.
type SensusClassicParams struct {
	FPOffset int // offset of the fingerprint within a dive (2: the 4-byte timestamp after 0xFF)
	FPSize   int // 4 bytes for every Reefnet family

	DepthAdjust    int // 13 (units.SampleDepthAdjust)
	ShallowMargin  int // 3
	ShallowRunLen  int // 17 consecutive shallow samples end a dive
	SampleInterval int // 6: every 6th depth sample is followed by a temperature byte

	Fingerprint []byte
}

// ScanSensusClassic walks data (the full linear image, oldest-first in
// memory layout) backwards looking for start markers and forwards from
// each to find the matching end, emitting dives newest-first.
func ScanSensusClassic(data []byte, p SensusClassicParams, cb DiveCallback) {
	var starts []int
	for i := 0; i+7 <= len(data); i++ {
		if data[i] == 0xFF && data[i+6] == 0xFE {
			starts = append(starts, i)
		}
	}

	for i := len(starts) - 1; i >= 0; i-- {
		start := starts[i]
		end := sensusClassicDiveEnd(data, start, p)
		if end <= start {
			continue
		}
		dive := data[start:end]

		var fp []byte
		if p.FPSize > 0 && p.FPOffset+p.FPSize <= len(dive) {
			fp = dive[p.FPOffset : p.FPOffset+p.FPSize]
		}
		if len(p.Fingerprint) > 0 && bytes.Equal(fp, p.Fingerprint) {
			return
		}
		if cb != nil && !cb(dive, fp) {
			return
		}
	}
}

func sensusClassicDiveEnd(data []byte, start int, p SensusClassicParams) int {
	threshold := p.DepthAdjust + p.ShallowMargin
	pos := start + 7
	run := 0
	sampleIdx := 0
	for pos < len(data) {
		sampleIdx++
		sample := data[pos]
		pos++
		if sampleIdx%p.SampleInterval == 0 && pos < len(data) {
			pos++ // skip interleaved temperature byte
		}
		if int(sample) < threshold {
			run++
			if run >= p.ShallowRunLen {
				return pos
			}
		} else {
			run = 0
		}
		// A new start marker means the previous dive implicitly ended.
		if pos+7 <= len(data) && data[pos] == 0xFF && data[pos+6] == 0xFE {
			return pos
		}
	}
	return pos
}

// SensusProParams configures the Reefnet Sensus Pro extractor: a 4-zero
// header, an "FF FF" footer.
type SensusProParams struct {
	FPOffset    int
	FPSize      int
	Fingerprint []byte
}

// ScanSensusPro scans backward for each 4-zero header and forward for
// its "FF FF" footer, emitting dives newest-first.
func ScanSensusPro(data []byte, p SensusProParams, cb DiveCallback) {
	var headers []int
	for i := 0; i+4 <= len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 && data[i+3] == 0 {
			headers = append(headers, i)
		}
	}

	for i := len(headers) - 1; i >= 0; i-- {
		start := headers[i]
		end := -1
		for j := start + 4; j+2 <= len(data); j++ {
			if data[j] == 0xFF && data[j+1] == 0xFF {
				end = j + 2
				break
			}
		}
		if end < 0 {
			continue
		}
		dive := data[start:end]

		var fp []byte
		if p.FPSize > 0 && p.FPOffset+p.FPSize <= len(dive) {
			fp = dive[p.FPOffset : p.FPOffset+p.FPSize]
		}
		if len(p.Fingerprint) > 0 && bytes.Equal(fp, p.Fingerprint) {
			return
		}
		if cb != nil && !cb(dive, fp) {
			return
		}
	}
}

// SensusUltraParams configures the Reefnet Sensus Ultra extractor: a
// 4-zero header (runs of >=4 zeros coalesce to one marker at the run
// start) and a 4-0xFF footer.
type SensusUltraParams struct {
	FPOffset    int
	FPSize      int
	Fingerprint []byte
}

// ScanSensusUltra scans data for coalesced zero-run headers paired with
// 0xFF-run footers, emitting dives newest-first. It is safe to call
// repeatedly as data grows (each page is prepended by the caller, per
// incremental-parsing note); re-scanning is idempotent
// because headers/footers are found by absolute content, not state.
func ScanSensusUltra(data []byte, p SensusUltraParams, cb DiveCallback) {
	headers := coalescedRuns(data, 0x00, 4)
	footers := coalescedRuns(data, 0xFF, 4)

	type pair struct{ start, end int }
	var dives []pair
	fi := 0
	for _, h := range headers {
		for fi < len(footers) && footers[fi] <= h {
			fi++
		}
		if fi >= len(footers) {
			break
		}
		dives = append(dives, pair{h, footers[fi] + 4})
		fi++
	}

	for i := len(dives) - 1; i >= 0; i-- {
		d := dives[i]
		dive := data[d.start:d.end]

		var fp []byte
		if p.FPSize > 0 && p.FPOffset+p.FPSize <= len(dive) {
			fp = dive[p.FPOffset : p.FPOffset+p.FPSize]
		}
		if len(p.Fingerprint) > 0 && bytes.Equal(fp, p.Fingerprint) {
			return
		}
		if cb != nil && !cb(dive, fp) {
			return
		}
	}
}

// coalescedRuns returns the start offset of every maximal run of b of
// length >= minLen within data, collapsed to a single marker per run.
func coalescedRuns(data []byte, b byte, minLen int) []int {
	var starts []int
	i := 0
	for i < len(data) {
		if data[i] != b {
			i++
			continue
		}
		runStart := i
		for i < len(data) && data[i] == b {
			i++
		}
		if i-runStart >= minLen {
			starts = append(starts, runStart)
		}
	}
	return starts
}
