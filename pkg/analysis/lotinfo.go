package analysis

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/stdf2h5/stdf2h5/pkg/recordio"
	"github.com/stdf2h5/stdf2h5/pkg/stdf"
)

// blueFilmHead is the WIR head number some handlers use for the blue film
// frame instead of the wafer
const blueFilmHead = 233

// DefaultSuffixes are the file name suffixes treated as STDF
var DefaultSuffixes = []string{".std", ".stdf", ".std_temp"}

// LotInfo is the lot level description of an STDF file
type LotInfo struct {
	LotID      string `json:"lot_id"`
	SublotID   string `json:"sblot_id"`
	WaferID    string `json:"wafer_id"`
	BlueFilmID string `json:"blue_film_id"`
	TestCode   string `json:"test_cod"`
	FlowID     string `json:"flow_id"`
	PartType   string `json:"part_typ"`
	JobName    string `json:"job_nam"`
	TestTemp   string `json:"tst_temp"`
	NodeName   string `json:"node_nam"`
	TesterType string `json:"tstr_typ"`
	SetupT     uint32 `json:"setup_t"`
	StartT     uint32 `json:"start_t"`
	SiteCount  uint8  `json:"site_cnt"`
	StationNum uint8  `json:"stat_num"`
	ModeCode   string `json:"mode_cod"`
	BurnTime   uint16 `json:"burn_tim"`
	Operator   string `json:"oper_nam"`
	ExecType   string `json:"exec_typ"`
	ExecVer    string `json:"exec_ver"`
	UserText   string `json:"user_txt"`
	PackageTyp string `json:"pkg_typ"`
	FamilyID   string `json:"famly_id"`
	DateCode   string `json:"date_cod"`
	FacilityID string `json:"facil_id"`
	FloorID    string `json:"floor_id"`
	ProcessID  string `json:"proc_id"`
	FinishT    uint32 `json:"finish_t"`
	DispCode   string `json:"disp_cod"`
	UserDesc   string `json:"usr_desc"`
	ExcDesc    string `json:"exc_desc"`
}

// Update folds one record into the lot information
func (l *LotInfo) Update(rec *stdf.Record) {
	switch rec.Name() {
	case "MIR":
		l.LotID = rec.Text("LOT_ID")
		l.SublotID = rec.Text("SBLOT_ID")
		l.TestCode = rec.Text("TEST_COD")
		l.FlowID = rec.Text("FLOW_ID")
		l.PartType = rec.Text("PART_TYP")
		l.JobName = rec.Text("JOB_NAM")
		l.TestTemp = rec.Text("TST_TEMP")
		l.NodeName = rec.Text("NODE_NAM")
		l.TesterType = rec.Text("TSTR_TYP")
		l.SetupT = uint32(rec.Uint("SETUP_T"))
		l.StartT = uint32(rec.Uint("START_T"))
		l.StationNum = uint8(rec.Uint("STAT_NUM"))
		l.ModeCode = rec.Text("MODE_COD")
		l.BurnTime = uint16(rec.Uint("BURN_TIM"))
		l.Operator = rec.Text("OPER_NAM")
		l.ExecType = rec.Text("EXEC_TYP")
		l.ExecVer = rec.Text("EXEC_VER")
		l.UserText = rec.Text("USER_TXT")
		l.PackageTyp = rec.Text("PKG_TYP")
		l.FamilyID = rec.Text("FAMLY_ID")
		l.DateCode = rec.Text("DATE_COD")
		l.FacilityID = rec.Text("FACIL_ID")
		l.FloorID = rec.Text("FLOOR_ID")
		l.ProcessID = rec.Text("PROC_ID")
	case "WIR":
		if rec.Uint("HEAD_NUM") == blueFilmHead {
			l.BlueFilmID = rec.Text("WAFER_ID")
		} else {
			l.WaferID = rec.Text("WAFER_ID")
		}
	case "SDR":
		l.SiteCount = uint8(rec.Uint("SITE_CNT"))
	case "MRR":
		l.FinishT = uint32(rec.Uint("FINISH_T"))
		l.DispCode = rec.Text("DISP_COD")
		l.UserDesc = rec.Text("USR_DESC")
		l.ExcDesc = rec.Text("EXC_DESC")
	}
}

// ReadLotInfo scans the header records of an STDF file. The scan stops at the
// first PIR unless full is set, in which case the whole file is read and the
// MRR fields are filled in too.
func ReadLotInfo(path string, full bool) (*LotInfo, error) {
	reader, err := recordio.NewRecordReader(recordio.RecordReaderConfig{FilePath: path})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info := &LotInfo{}
	for {
		rec, err := reader.ReadNext()
		if errors.Is(err, io.EOF) {
			return info, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if rec.Name() == "PIR" && !full {
			return info, nil
		}
		info.Update(rec)
	}
}

// IsSTDF reports whether name ends in one of the suffixes, compared without
// regard to case. DefaultSuffixes is used when none are given.
func IsSTDF(name string, suffixes ...string) bool {
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range suffixes {
		if ext == strings.ToLower(s) {
			return true
		}
	}
	return false
}
