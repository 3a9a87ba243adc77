package decoder

import (
	"strconv"

	"framepipe/internal/perrors"
)

// PlatformStatus is a generic platform/codec status code, the Go stand-in
// for the OSStatus values decoder_vt.c's init/decode paths switch on.
type PlatformStatus int

// MapPlatformError classifies a platform decoder status into the
// perrors.DecodeCategory taxonomy, following decoder_vt.c's status-code
// switch (kVTVideoDecoderNotAvailableNowErr/kVTVideoDecoderUnsupportedDataFormatErr
// mapped to unsupported, bad bitstream data mapped to invalid-data,
// session/hardware-malfunction codes mapped to malfunction, anything else
// falling through to unknown).
func MapPlatformError(op string, status PlatformStatus, class PlatformErrorClass) error {
	var cat perrors.DecodeCategory
	switch class {
	case ErrClassUnsupported:
		cat = perrors.CategoryUnsupported
	case ErrClassInvalidData:
		cat = perrors.CategoryInvalidData
	case ErrClassMalfunction:
		cat = perrors.CategoryMalfunction
	default:
		cat = perrors.CategoryUnknown
	}
	return perrors.NewDecodeError(op, cat, platformStatusError{status: status})
}

// PlatformErrorClass is the coarse bucket a platform status code falls
// into, determined by the decoder implementation from its own status enum
// (mirrors the four-way switch in decoder_vt.c's error-mapping helper).
type PlatformErrorClass int

const (
	ErrClassUnknown PlatformErrorClass = iota
	ErrClassUnsupported
	ErrClassInvalidData
	ErrClassMalfunction
)

type platformStatusError struct {
	status PlatformStatus
}

func (e platformStatusError) Error() string {
	return "platform decoder status " + strconv.Itoa(int(e.status))
}
