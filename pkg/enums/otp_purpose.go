package enums

// OtpPurpose says which party holds the completion code and which presents it.
type OtpPurpose string

const (
	// OtpPurposeWorkerConfirmsWithClientCode: the client asked to close, the
	// worker receives the code and presents it.
	OtpPurposeWorkerConfirmsWithClientCode OtpPurpose = "worker_confirms_with_client_code"
	// OtpPurposeClientVerifiesCompletion: the worker asked to close, the client
	// receives the code and presents it.
	OtpPurposeClientVerifiesCompletion OtpPurpose = "client_verifies_completion"
)

var otpPurposes = []OtpPurpose{OtpPurposeWorkerConfirmsWithClientCode, OtpPurposeClientVerifiesCompletion}

func (p OtpPurpose) IsValid() bool { return oneOf(p, otpPurposes) }

func ParseOtpPurpose(value string) (OtpPurpose, error) {
	return parse("otp purpose", value, otpPurposes, nil)
}
