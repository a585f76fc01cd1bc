package explain

import "EventEdge/internal/domain/models"

// template holds the text of one note per language. Params are substituted in the listed order.
type template struct {
	params []string
	en     string
	vi     string
}

var messages = map[models.NoteCode]template{
	models.NoteNoHistoricalData: {
		en: "No historical pattern data, echo edge held at neutral",
		vi: "Không có dữ liệu mẫu lịch sử, điểm echo giữ ở mức trung tính",
	},
	models.NoteEchoPattern: {
		params: []string{"accuracyPct", "sampleSize", "correlation"},
		en:     "Historical pattern: %.1f%% accuracy over %v samples, correlation %.2f",
		vi:     "Mẫu lịch sử: độ chính xác %.1f%% trên %v mẫu, tương quan %.2f",
	},
	models.NoteSmallSamplePenalty: {
		params: []string{"sampleSize", "penalty"},
		en:     "Small sample (%v events), echo edge reduced by %v",
		vi:     "Mẫu nhỏ (%v sự kiện), điểm echo bị trừ %v",
	},
	models.NoteHedgedLanguage: {
		params: []string{"penalty"},
		en:     "Hedged language in the read, clarity reduced by %v",
		vi:     "Ngôn ngữ rào đón, điểm rõ ràng bị trừ %v",
	},
	models.NoteHighAmbiguity: {
		params: []string{"ambiguity"},
		en:     "High ambiguity (%.2f)",
		vi:     "Độ mơ hồ cao (%.2f)",
	},
	models.NoteNoVolatilityData: {
		en: "No volatility data, using fallback regime score",
		vi: "Không có dữ liệu biến động, dùng điểm mặc định",
	},
	models.NoteVolatilityElevated: {
		params: []string{"atrPct"},
		en:     "Volatility elevated (ATR %.2f%%), position reduced",
		vi:     "Biến động cao (ATR %.2f%%), giảm quy mô vị thế",
	},
	models.NoteNoGapData: {
		en: "No gap data, using fallback gap score",
		vi: "Không có dữ liệu gap, dùng điểm mặc định",
	},
	models.NoteGapRiskElevated: {
		params: []string{"gapPct"},
		en:     "Overnight gap risk elevated (%.2f%%)",
		vi:     "Rủi ro gap qua đêm cao (%.2f%%)",
	},
	models.NoteCorroborated: {
		params: []string{"updates", "bonus"},
		en:     "Corroborated by %v independent updates (+%v)",
		vi:     "Được xác nhận bởi %v nguồn độc lập (+%v)",
	},
	models.NoteStaleEvent: {
		params: []string{"ageHours", "penalty"},
		en:     "Event is %vh old, freshness reduced by %v",
		vi:     "Sự kiện đã %v giờ, điểm độ mới bị trừ %v",
	},
	models.NoteNoPublishTime: {
		en: "Publish time unknown, age not assessed",
		vi: "Không rõ thời điểm đăng, bỏ qua tuổi sự kiện",
	},
	models.NoteLowConfidence: {
		params: []string{"overall", "threshold"},
		en:     "Overall confidence %v is below %v",
		vi:     "Độ tin cậy tổng %v thấp hơn %v",
	},
	models.NoteInsufficientSample: {
		params: []string{"sampleSize", "minimum"},
		en:     "Only %v historical samples, need at least %v",
		vi:     "Chỉ có %v mẫu lịch sử, cần tối thiểu %v",
	},
	models.NoteLowAccuracy: {
		params: []string{"accuracyPct", "minimumPct"},
		en:     "Historical accuracy %.1f%% is below %.1f%%",
		vi:     "Độ chính xác lịch sử %.1f%% thấp hơn %.1f%%",
	},
	models.NoteDirectionConflict: {
		params: []string{"history", "read"},
		en:     "Historical pattern points %s but the read says %s",
		vi:     "Mẫu lịch sử nghiêng về %s nhưng nhận định là %s",
	},
	models.NoteTooVolatile: {
		params: []string{"regimeVol", "threshold"},
		en:     "Regime score %v is below %v, too volatile",
		vi:     "Điểm chế độ thị trường %v thấp hơn %v, quá biến động",
	},
	models.NoteGapRiskTooHigh: {
		params: []string{"gapRisk", "threshold"},
		en:     "Gap risk score %v is below %v",
		vi:     "Điểm rủi ro gap %v thấp hơn %v",
	},
	models.NoteWaitForEntry: {
		params: []string{"entryType", "entryLevel"},
		en:     "Moderate confidence, wait for entry (%s at %.2f)",
		vi:     "Độ tin cậy trung bình, chờ điểm vào (%s tại %.2f)",
	},
	models.NoteWaitGapSettle: {
		params: []string{"gapRisk"},
		en:     "Clear read but gap risk score %v, wait for the open to settle",
		vi:     "Nhận định rõ nhưng điểm rủi ro gap %v, chờ thị trường ổn định",
	},
	models.NoteDirectionalRead: {
		params: []string{"direction"},
		en:     "No override fired, following the %s read",
		vi:     "Không có quy tắc chặn, theo nhận định %s",
	},
	models.NoteNoDirection: {
		en: "No directional read, nothing to trade",
		vi: "Không có nhận định hướng, không giao dịch",
	},
	models.NoteStopFromLevels: {
		params: []string{"entryLevel", "invalidationLevel", "stopPct"},
		en:     "Stop from levels: entry %.2f, invalidation %.2f (%.2f%%)",
		vi:     "Dừng lỗ theo mức giá: vào %.2f, vô hiệu %.2f (%.2f%%)",
	},
	models.NoteStopFromATR: {
		params: []string{"atrPct"},
		en:     "Stop from ATR fallback (%.2f%%)",
		vi:     "Dừng lỗ theo ATR (%.2f%%)",
	},
	models.NoteStopDefault: {
		params: []string{"stopPct"},
		en:     "No levels or ATR, default stop %.2f%%",
		vi:     "Không có mức giá hay ATR, dừng lỗ mặc định %.2f%%",
	},
	models.NoteNoPosition: {
		params: []string{"signal"},
		en:     "No position on %s",
		vi:     "Không mở vị thế khi tín hiệu là %s",
	},
}
