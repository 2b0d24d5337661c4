package analyze

// NoiseBoundConfig is the noise bound requested from the parameter
// optimizer. It is carried by Analyze for the downstream optimizer and is
// not read by the propagation.
type NoiseBoundConfig struct {
	SecurityLevel                     uint64
	MaximumAcceptableErrorProbability float64
	CiphertextModulusLog              uint32
}

// DefaultNoiseBoundConfig is 128-bit security, a 2^-40 error probability
// and a 64-bit ciphertext modulus.
var DefaultNoiseBoundConfig = NoiseBoundConfig{
	SecurityLevel:                     128,
	MaximumAcceptableErrorProbability: 1.0 / float64(uint64(1)<<40),
	CiphertextModulusLog:              64,
}
