package stdf

// STDF V4 record catalog.
func init() {
	register(newSchema("FAR", 0, 10, scalar(U1, "CPU_TYPE", "STDF_VER")...))
	register(newSchema("ATR", 0, 20, one(U4, "MOD_TIM"), one(Cn, "CMD_LINE")))

	register(newSchema("MIR", 1, 10, join(
		scalar(U4, "SETUP_T", "START_T"),
		scalar(U1, "STAT_NUM"),
		scalar(C1, "MODE_COD", "RTST_COD", "PROT_COD"),
		scalar(U2, "BURN_TIM"),
		scalar(C1, "CMOD_COD"),
		scalar(Cn, "LOT_ID", "PART_TYP", "NODE_NAM", "TSTR_TYP", "JOB_NAM", "JOB_REV",
			"SBLOT_ID", "OPER_NAM", "EXEC_TYP", "EXEC_VER", "TEST_COD", "TST_TEMP",
			"USER_TXT", "AUX_FILE", "PKG_TYP", "FAMLY_ID", "DATE_COD", "FACIL_ID",
			"FLOOR_ID", "PROC_ID", "OPER_FRQ", "SPEC_NAM", "SPEC_VER", "FLOW_ID",
			"SETUP_ID", "DSGN_REV", "ENG_ID", "ROM_COD", "SERL_NUM", "SUPR_NAM"),
	)...))

	register(newSchema("MRR", 1, 20,
		one(U4, "FINISH_T"), one(C1, "DISP_COD"), one(Cn, "USR_DESC"), one(Cn, "EXC_DESC")))

	register(newSchema("PCR", 1, 30, join(
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(U4, "PART_CNT", "RTST_CNT", "ABRT_CNT", "GOOD_CNT", "FUNC_CNT"),
	)...))

	register(newSchema("HBR", 1, 40, join(
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(U2, "HBIN_NUM"), scalar(U4, "HBIN_CNT"),
		scalar(C1, "HBIN_PF"), scalar(Cn, "HBIN_NAM"),
	)...))

	register(newSchema("SBR", 1, 50, join(
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(U2, "SBIN_NUM"), scalar(U4, "SBIN_CNT"),
		scalar(C1, "SBIN_PF"), scalar(Cn, "SBIN_NAM"),
	)...))

	register(newSchema("PMR", 1, 60, join(
		scalar(U2, "PMR_INDX", "CHAN_TYP"),
		scalar(Cn, "CHAN_NAM", "PHY_NAM", "LOG_NAM"),
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
	)...))

	register(newSchema("PGR", 1, 62,
		one(U2, "GRP_INDX"), one(Cn, "GRP_NAM"), one(U2, "INDX_CNT"),
		array(U2, "PMR_INDX", "INDX_CNT")))

	register(newSchema("RDR", 1, 70, one(U2, "NUM_BINS"), array(U2, "RTST_BIN", "NUM_BINS")))

	register(newSchema("SDR", 1, 80, join(
		scalar(U1, "HEAD_NUM", "SITE_GRP", "SITE_CNT"),
		[]Field{array(U1, "SITE_NUM", "SITE_CNT")},
		scalar(Cn, "HAND_TYP", "HAND_ID", "CARD_TYP", "CARD_ID", "LOAD_TYP", "LOAD_ID",
			"DIB_TYP", "DIB_ID", "CABL_TYP", "CABL_ID", "CONT_TYP", "CONT_ID",
			"LASR_TYP", "LASR_ID", "EXTR_TYP", "EXTR_ID"),
	)...))

	register(newSchema("WIR", 2, 10,
		one(U1, "HEAD_NUM"), one(U1, "SITE_GRP"), one(U4, "START_T"), one(Cn, "WAFER_ID")))

	register(newSchema("WRR", 2, 20, join(
		scalar(U1, "HEAD_NUM", "SITE_GRP"),
		scalar(U4, "FINISH_T", "PART_CNT", "RTST_CNT", "ABRT_CNT", "GOOD_CNT", "FUNC_CNT"),
		scalar(Cn, "WAFER_ID", "FABWF_ID", "FRAME_ID", "MASK_ID", "USR_DESC", "EXC_DESC"),
	)...))

	register(newSchema("WCR", 2, 30, join(
		scalar(R4, "WAFR_SIZ", "DIE_HT", "DIE_WID"),
		scalar(U1, "WF_UNITS"), scalar(C1, "WF_FLAT"),
		scalar(I2, "CENTER_X", "CENTER_Y"),
		scalar(C1, "POS_X", "POS_Y"),
	)...))

	register(newSchema("PIR", 5, 10, scalar(U1, "HEAD_NUM", "SITE_NUM")...))

	register(newSchema("PRR", 5, 20, join(
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(B1, "PART_FLG"),
		scalar(U2, "NUM_TEST", "HARD_BIN", "SOFT_BIN"),
		scalar(I2, "X_COORD", "Y_COORD"),
		scalar(U4, "TEST_T"),
		scalar(Cn, "PART_ID", "PART_TXT"),
		scalar(Bn, "PART_FIX"),
	)...))

	register(newSchema("TSR", 10, 30, join(
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(C1, "TEST_TYP"),
		scalar(U4, "TEST_NUM", "EXEC_CNT", "FAIL_CNT", "ALRM_CNT"),
		scalar(Cn, "TEST_NAM", "SEQ_NAME", "TEST_LBL"),
		scalar(B1, "OPT_FLAG"),
		scalar(R4, "TEST_TIM", "TEST_MIN", "TEST_MAX", "TST_SUMS", "TST_SQRS"),
	)...))

	register(newSchema("PTR", 15, 10, join(
		scalar(U4, "TEST_NUM"),
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(B1, "TEST_FLG", "PARM_FLG"),
		scalar(R4, "RESULT"),
		scalar(Cn, "TEST_TXT", "ALARM_ID"),
		scalar(B1, "OPT_FLAG"),
		scalar(I1, "RES_SCAL", "LLM_SCAL", "HLM_SCAL"),
		scalar(R4, "LO_LIMIT", "HI_LIMIT"),
		scalar(Cn, "UNITS", "C_RESFMT", "C_LLMFMT", "C_HLMFMT"),
		scalar(R4, "LO_SPEC", "HI_SPEC"),
	)...))

	register(newSchema("MPR", 15, 15, join(
		scalar(U4, "TEST_NUM"),
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(B1, "TEST_FLG", "PARM_FLG"),
		scalar(U2, "RTN_ICNT", "RSLT_CNT"),
		[]Field{
			array(N1, "RTN_STAT", "RTN_ICNT"),
			array(R4, "RTN_RSLT", "RSLT_CNT"),
		},
		scalar(Cn, "TEST_TXT", "ALARM_ID"),
		scalar(B1, "OPT_FLAG"),
		scalar(I1, "RES_SCAL", "LLM_SCAL", "HLM_SCAL"),
		scalar(R4, "LO_LIMIT", "HI_LIMIT", "START_IN", "INCR_IN"),
		[]Field{array(U2, "RTN_INDX", "RTN_ICNT")},
		scalar(Cn, "UNITS", "UNITS_IN", "C_RESFMT", "C_LLMFMT", "C_HLMFMT"),
		scalar(R4, "LO_SPEC", "HI_SPEC"),
	)...))

	register(newSchema("FTR", 15, 20, join(
		scalar(U4, "TEST_NUM"),
		scalar(U1, "HEAD_NUM", "SITE_NUM"),
		scalar(B1, "TEST_FLG", "OPT_FLAG"),
		scalar(U4, "CYCL_CNT", "REL_VADR", "REPT_CNT", "NUM_FAIL"),
		scalar(I4, "XFAIL_AD", "YFAIL_AD"),
		scalar(I2, "VECT_OFF"),
		scalar(U2, "RTN_ICNT", "PGM_ICNT"),
		[]Field{
			array(U2, "RTN_INDX", "RTN_ICNT"),
			array(N1, "RTN_STAT", "RTN_ICNT"),
			array(U2, "PGM_INDX", "PGM_ICNT"),
			array(N1, "PGM_STAT", "PGM_ICNT"),
		},
		scalar(Dn, "FAIL_PIN"),
		scalar(Cn, "VECT_NAM", "TIME_SET", "OP_CODE", "TEST_TXT", "ALARM_ID", "PROG_TXT", "RSLT_TXT"),
		scalar(U1, "PATG_NUM"),
		scalar(Dn, "SPIN_MAP"),
	)...))

	register(newSchema("BPS", 20, 10, one(Cn, "SEQ_NAME")))
	register(newSchema("EPS", 20, 20))
	register(newSchema("DTR", 50, 30, one(Cn, "TEXT_DAT")))
}
