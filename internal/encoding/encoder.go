package encoding

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
)

// EncoderPool manages a pool of JSON encoders for better performance
type EncoderPool struct {
	pool chan *json.Encoder
	size int
}

// NewEncoderPool creates a new encoder pool with specified size
func NewEncoderPool(size int) *EncoderPool {
	if size <= 0 {
		size = 10
	}

	pool := make(chan *json.Encoder, size)
	for i := 0; i < size; i++ {
		// Create encoder with a dummy writer initially
		encoder := json.NewEncoder(io.Discard)
		pool <- encoder
	}

	return &EncoderPool{
		pool: pool,
		size: size,
	}
}

// GetEncoder retrieves an encoder from the pool
func (ep *EncoderPool) GetEncoder() *json.Encoder {
	select {
	case encoder := <-ep.pool:
		return encoder
	default:
		// Pool exhausted, create new encoder
		slog.Debug("Encoder pool exhausted, creating new encoder")
		return json.NewEncoder(io.Discard)
	}
}

// ReturnEncoder returns an encoder to the pool
func (ep *EncoderPool) ReturnEncoder(encoder *json.Encoder) {
	select {
	case ep.pool <- encoder:
		// Successfully returned to pool
	default:
		// Pool full, discard encoder
		slog.Debug("Encoder pool full, discarding encoder")
	}
}

// Marshal marshals data using the encoder pool for better performance
func (ep *EncoderPool) Marshal(v interface{}) ([]byte, error) {
	encoder := ep.GetEncoder()
	defer ep.ReturnEncoder(encoder)

	var buf bytes.Buffer
	encoder.SetIndent("", "") // No indentation for performance

	// Create a new encoder for this specific buffer
	tempEncoder := json.NewEncoder(&buf)

	if err := tempEncoder.Encode(v); err != nil {
		return nil, err
	}

	// Remove the trailing newline that json.Encoder.Encode adds
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	return data, nil
}

// DecoderPool manages a pool of JSON decoders for better performance
type DecoderPool struct {
	pool chan *json.Decoder
	size int
}

// NewDecoderPool creates a new decoder pool with specified size
func NewDecoderPool(size int) *DecoderPool {
	if size <= 0 {
		size = 10
	}

	pool := make(chan *json.Decoder, size)
	for i := 0; i < size; i++ {
		// Create decoder with a dummy reader initially
		decoder := json.NewDecoder(bytes.NewReader([]byte{}))
		pool <- decoder
	}

	return &DecoderPool{
		pool: pool,
		size: size,
	}
}

// GetDecoder retrieves a decoder from the pool
func (dp *DecoderPool) GetDecoder(data []byte) *json.Decoder {
	// For simplicity, create a new decoder for each use
	return json.NewDecoder(bytes.NewReader(data))
}

// ReturnDecoder returns a decoder to the pool
func (dp *DecoderPool) ReturnDecoder(decoder *json.Decoder) {
	select {
	case dp.pool <- decoder:
		// Successfully returned to pool
	default:
		// Pool full, discard decoder
		slog.Debug("Decoder pool full, discarding decoder")
	}
}

// Unmarshal unmarshals data using the decoder pool for better performance
func (dp *DecoderPool) Unmarshal(data []byte, v interface{}) error {
	decoder := dp.GetDecoder(data)
	defer dp.ReturnDecoder(decoder)

	return decoder.Decode(v)
}

// ReportEncoder provides pooled JSON encoding for analysis reports, which
// can run large when notebooks carry hundreds of findings.
type ReportEncoder struct {
	encoderPool *EncoderPool
	decoderPool *DecoderPool
}

// NewReportEncoder creates a new pooled report encoder
func NewReportEncoder() *ReportEncoder {
	return &ReportEncoder{
		encoderPool: NewEncoderPool(20),
		decoderPool: NewDecoderPool(20),
	}
}

// Marshal marshals data with high performance
func (re *ReportEncoder) Marshal(v interface{}) ([]byte, error) {
	return re.encoderPool.Marshal(v)
}

// Unmarshal unmarshals data with high performance
func (re *ReportEncoder) Unmarshal(data []byte, v interface{}) error {
	return re.decoderPool.Unmarshal(data, v)
}

// GetStats returns encoder/decoder pool statistics
func (re *ReportEncoder) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"encoder_pool_size": cap(re.encoderPool.pool),
		"decoder_pool_size": cap(re.decoderPool.pool),
	}
}

// Global pooled encoder instance
var globalReportEncoder = NewReportEncoder()

// MarshalJSON marshals data using the global pooled encoder
func MarshalJSON(v interface{}) ([]byte, error) {
	return globalReportEncoder.Marshal(v)
}

// UnmarshalJSON unmarshals data using the global pooled encoder
func UnmarshalJSON(data []byte, v interface{}) error {
	return globalReportEncoder.Unmarshal(data, v)
}
