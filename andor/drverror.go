package andor

import (
	"fmt"

	"github.com/LivTel/autoguider-sub002/ccd"
)

// Andor SDK2 return codes used by the backend
const (
	DRVSuccess           DRVError = 20002
	DRVTempOff           DRVError = 20034
	DRVTempNotStabilized DRVError = 20035
	DRVTempStabilized    DRVError = 20036
	DRVTempNotReached    DRVError = 20037
	DRVTempDrift         DRVError = 20040
	DRVAcquiring         DRVError = 20072
	DRVIdle              DRVError = 20073
	DRVNotInitialized    DRVError = 20075
)

// Andor SDK2 parameter values used by the backend
const (
	readModeImage        = 4
	acquisitionModeScan  = 1
	shutterTTLHigh       = 1
	shutterModeOpen      = 0
	shutterModeClose     = 2
	frameTransferEnabled = 1
)

// ErrCodes maps SDK2 return codes to their names in atmcd32d.h
var ErrCodes = map[DRVError]string{
	20001: "DRV_ERROR_CODES",
	20002: "DRV_SUCCESS",
	20003: "DRV_VXD_NOT_INSTALLED",
	20004: "DRV_ERROR_SCAN",
	20005: "DRV_ERROR_CHECKSUM",
	20006: "DRV_ERROR_FILELOAD",
	20007: "DRV_UNKNOWN_FUNCTION",
	20008: "DRV_ERROR_VXD_INIT",
	20009: "DRV_ERROR_ADDRESS",
	20010: "DRV_ERROR_PAGE_LOCK",
	20011: "DRV_ERROR_PAGE_UNLOCK",
	20012: "DRV_ERROR_BOARDTEST",
	20013: "DRV_ERROR_ACK",
	20014: "DRV_ERROR_UP_FIFO",
	20015: "DRV_ERROR_PATTERN",
	20017: "DRV_ACQUISITION_ERRORS",
	20018: "DRV_ACQ_BUFFER",
	20019: "DRV_ACQ_DOWNFIFO_FULL",
	20020: "DRV_PROC_UNKNOWN_INSTRUCTION",
	20021: "DRV_ILLEGAL_OP_CODE",
	20022: "DRV_KINETIC_TIME_NOT_MET",
	20023: "DRV_ACCUM_TIME_NOT_MET",
	20024: "DRV_NO_NEW_DATA",
	20026: "DRV_SPOOLERROR",
	20033: "DRV_TEMPERATURE_CODES",
	20034: "DRV_TEMPERATURE_OFF",
	20035: "DRV_TEMPERATURE_NOT_STABILIZED",
	20036: "DRV_TEMPERATURE_STABILIZED",
	20037: "DRV_TEMPERATURE_NOT_REACHED",
	20038: "DRV_TEMPERATURE_OUT_RANGE",
	20039: "DRV_TEMPERATURE_NOT_SUPPORTED",
	20040: "DRV_TEMPERATURE_DRIFT",
	20049: "DRV_GENERAL_ERRORS",
	20050: "DRV_INVALID_AUX",
	20051: "DRV_COF_NOTLOADED",
	20052: "DRV_FPGAPROG",
	20053: "DRV_FLEXERROR",
	20054: "DRV_GPIBERROR",
	20064: "DRV_DATATYPE",
	20065: "DRV_DRIVER_ERRORS",
	20066: "DRV_P1INVALID",
	20067: "DRV_P2INVALID",
	20068: "DRV_P3INVALID",
	20069: "DRV_P4INVALID",
	20070: "DRV_INIERROR",
	20071: "DRV_COFERROR",
	20072: "DRV_ACQUIRING",
	20073: "DRV_IDLE",
	20074: "DRV_TEMPCYCLE",
	20075: "DRV_NOT_INITIALIZED",
	20076: "DRV_P5INVALID",
	20077: "DRV_P6INVALID",
	20078: "DRV_INVALID_MODE",
	20079: "DRV_INVALID_FILTER",
	20080: "DRV_I2CERRORS",
	20081: "DRV_DRV_I2CDEVNOTFOUND",
	20082: "DRV_I2CTIMEOUT",
	20083: "DRV_P7INVALID",
	20089: "DRV_USBERROR",
	20090: "DRV_IOCERROR",
	20091: "DRV_NOT_SUPPORTED",
	20093: "DRV_USB_INTERRUPT_ENDPOINT_ERROR",
	20094: "DRV_RANDOM_TRACK_ERROR",
	20095: "DRV_INVALID_TRIGGER_MODE",
	20096: "DRV_LOAD_FIRMWARE_ERROR",
	20097: "DRV_DIVIDE_BY_ZERO_ERROR",
	20098: "DRV_INVALID_RINGEXPOSURES",
	20099: "DRV_BINNING_ERROR",
	20100: "DRV_INVALID_AMPLIFIER",
	20115: "DRV_ERROR_MAP",
	20116: "DRV_ERROR_UNMAP",
	20117: "DRV_ERROR_MDL",
	20118: "DRV_ERROR_UNMDL",
	20119: "DRV_ERROR_BUFFSIZE",
	20121: "DRV_ERROR_NOHANDLE",
	20130: "DRV_GATING_NOT_AVAILABLE",
	20131: "DRV_FPGA_VOLTAGE_ERROR",
	20990: "DRV_ERROR_NOCAMERA",
	20991: "DRV_NOT_SUPPORTED",
	20992: "DRV_NOT_AVAILABLE",
}

// DRVError is an SDK2 return code
type DRVError uint

func (e DRVError) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", uint(e), s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", uint(e))
}

// String is the code's name without its number
func (e DRVError) String() string {
	if s, ok := ErrCodes[e]; ok {
		return s
	}
	return "UNKNOWN_ERROR_CODE"
}

// check translates an SDK2 return code into a ccd error.  DRV_SUCCESS is nil.
func check(op string, code uint) error {
	if DRVError(code) == DRVSuccess {
		return nil
	}
	return ccd.HardwareError(op, int(code), "%s failed %s", op, DRVError(code).String())
}
