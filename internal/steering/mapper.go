// Package steering 在用户录入的嵌套 JSON 和外部 API 的 steering 记录之间转换
package steering

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// FetchLimit GetSteerings 单次查询条数
const FetchLimit = 1000

// DisplayLocationLevel 预览记录使用的 location level
const DisplayLocationLevel = "LOCATION_LEVEL_POOL"

const placeholder = "-"

var yieldCodePattern = regexp.MustCompile(`^([PI])(\d+)$`)

// Defaults 发布记录中的固定字段
type Defaults struct {
	LocationLevel string
	VehicleType   string
	YieldType     string
	Identity      string
	Channel       string
	AvailableType string
}

// NewDefaults 返回标准取值
func NewDefaults() Defaults {
	return Defaults{
		LocationLevel: "LOCATION_LEVEL_BRANCH",
		VehicleType:   "VEHICLE_TYPE_P",
		YieldType:     "TYPE_LEVEL_PLAIN",
		Identity:      "franchise",
		Channel:       "GIVO",
		AvailableType: "AVAILABLE_TYPE_CONDITIONAL",
	}
}

// Mapper 无状态的转换器
type Mapper struct {
	defaults Defaults
}

// NewMapper 创建转换器，空字段使用标准取值
func NewMapper(d Defaults) *Mapper {
	std := NewDefaults()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&d.LocationLevel, std.LocationLevel)
	fill(&d.VehicleType, std.VehicleType)
	fill(&d.YieldType, std.YieldType)
	fill(&d.Identity, std.Identity)
	fill(&d.Channel, std.Channel)
	fill(&d.AvailableType, std.AvailableType)
	return &Mapper{defaults: d}
}

// Defaults 返回当前使用的固定字段
func (m *Mapper) Defaults() Defaults {
	return m.defaults
}

// ParseEntry 解析并校验录入的 JSON
func ParseEntry(raw []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return nil, &FormatError{Message: "Input must be a JSON object!", Err: err}
		}
		return nil, &FormatError{Message: "Invalid JSON", Err: err}
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Validate 检查必填字段和日期格式
func (e *Entry) Validate() error {
	if !e.Location.Present() {
		return &FormatError{Message: "Location is not specified!"}
	}
	if _, err := strconv.ParseInt(e.Location.String, 10, 64); err != nil {
		return &FormatError{Message: "Location should be an integer area code. For example 42484.", Value: e.Location.String}
	}
	if e.Date != "" {
		if _, err := ParseDate(e.Date); err != nil {
			return err
		}
	}
	if e.Data == nil {
		return &FormatError{Message: "The data field must be an array."}
	}

	for _, item := range e.Data {
		if err := item.Period.validate("group: " + item.Name); err != nil {
			return err
		}
		for i, peak := range item.Peaks {
			if err := peak.validate("peak " + strconv.Itoa(i+1) + " for group: " + item.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p Period) validate(owner string) error {
	if p.Start == "" {
		return &FormatError{Message: "Start date for " + owner + " is not specified!"}
	}
	if _, err := ParseDate(p.Start); err != nil {
		return err
	}
	if p.End == "" {
		return &FormatError{Message: "End date for " + owner + " is not specified!"}
	}
	if _, err := ParseDate(p.End); err != nil {
		return err
	}
	if p.YieldCode == "" {
		return &FormatError{Message: "Yield value for " + owner + " is not specified!"}
	}
	return nil
}

// ParseYieldCode 解析 P<n> / I<n>
func ParseYieldCode(code string) (YieldCode, error) {
	match := yieldCodePattern.FindStringSubmatch(strings.TrimSpace(code))
	if match == nil {
		return YieldCode{}, formatErrorf(code, "invalid yield code, expected P<n> or I<n>")
	}

	value, err := strconv.Atoi(match[2])
	if err != nil {
		return YieldCode{}, &FormatError{Message: "invalid yield code value", Value: code, Err: err}
	}

	valueType := ValueTypeRateP
	if match[1] == "I" {
		valueType = ValueTypeRateI
	}
	return YieldCode{ValueType: valueType, Value: value}, nil
}

// NormalizePrice 把逗号作小数点的价格转为数值
func NormalizePrice(s string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, &FormatError{Message: "invalid price", Value: s, Err: err}
	}
	return price, nil
}

// ToAPIPayload 把录入数据转为发布请求，每个车型组生成 1 条 UDA 记录和每个 peak 1 条 PEAK 记录
//
// 录入数据带定价日期时同时生成本地价格记录。
func (m *Mapper) ToAPIPayload(entry *Entry) (*Payload, error) {
	var yieldingDate string
	if entry.Date != "" {
		d, err := ParseDate(entry.Date)
		if err != nil {
			return nil, err
		}
		yieldingDate = d
	}

	payload := &Payload{Steerings: make([]SteeringRecord, 0, countRecords(entry))}
	add := func(name string, p Period, steerType, remark string) error {
		rec, err := m.upsertRecord(entry, name, p, steerType, remark)
		if err != nil {
			return err
		}
		payload.Steerings = append(payload.Steerings, rec)

		if yieldingDate != "" {
			payload.PriceData = append(payload.PriceData, priceData(entry, yieldingDate, name, p, steerType))
		}
		return nil
	}

	for _, item := range entry.Data {
		if err := add(item.Name, item.Period, SteerTypeUDA, "Steering "+item.Name); err != nil {
			return nil, err
		}
		for _, peak := range item.Peaks {
			if err := add(item.Name, peak, SteerTypePeak, "Peak "+item.Name); err != nil {
				return nil, err
			}
		}
	}

	return payload, nil
}

func (m *Mapper) upsertRecord(entry *Entry, name string, p Period, steerType, remark string) (SteeringRecord, error) {
	code, err := ParseYieldCode(p.YieldCode)
	if err != nil {
		return SteeringRecord{}, err
	}
	from, to, err := dateSpan(p)
	if err != nil {
		return SteeringRecord{}, err
	}
	steerFrom, steerTo := steerWindow(from, to)

	return SteeringRecord{
		LocationLevel:    m.defaults.LocationLevel,
		LocationID:       FlexString(entry.Location.String),
		SteerType:        steerType,
		LengthOfRentFrom: p.Lor,
		LengthOfRentTo:   p.Mlor,
		VehicleType:      m.defaults.VehicleType,
		VehicleGroup:     name,
		YieldType:        m.defaults.YieldType,
		ValueType:        code.ValueType,
		Value:            Value(strconv.Itoa(code.Value)),
		SteerFrom:        steerFrom,
		SteerTo:          steerTo,
		Identity:         m.defaults.Identity,
		Channel:          m.defaults.Channel,
		AvailableType:    m.defaults.AvailableType,
		Remark:           remark,
		Operation:        OperationUpsert,
	}, nil
}

func priceData(entry *Entry, yieldingDate, name string, p Period, steerType string) PriceDataRecord {
	// 调用前已经通过 dateSpan 校验
	from, _ := ParseDate(p.Start)
	to, _ := ParseDate(p.End)
	return PriceDataRecord{
		YieldingDate: NewText(yieldingDate),
		CarGroup:     NewText(name),
		Type:         NewText(priceType(steerType)),
		StartDate:    NewText(from),
		EndDate:      NewText(to),
		Yield:        p.Yield,
		YieldCode:    NewText(p.YieldCode),
		Price:        p.Price,
		Pool:         entry.Location,
	}
}

// ToDeleteRequest 把记录转为删除请求，其余字段原样保留
func (m *Mapper) ToDeleteRequest(records []SteeringRecord) *DeletePayload {
	out := make([]SteeringRecord, len(records))
	for i, rec := range records {
		rec.Operation = OperationDelete
		out[i] = rec
	}
	return &DeletePayload{Steerings: out}
}

// DeleteCriteria 生成删除本地价格记录的匹配条件，与 ToAPIPayload 生成的价格记录一一对应
func (m *Mapper) DeleteCriteria(entry *Entry) ([]DeleteCriterion, error) {
	var yieldingDate Text
	if entry.Date != "" {
		d, err := ParseDate(entry.Date)
		if err != nil {
			return nil, err
		}
		yieldingDate = NewText(d)
	}

	criteria := make([]DeleteCriterion, 0, countRecords(entry))
	add := func(name string, p Period, steerType string) error {
		from, to, err := dateSpan(p)
		if err != nil {
			return err
		}
		steerFrom, steerTo := steerWindow(from, to)
		criteria = append(criteria, DeleteCriterion{
			SteerFrom:    NewText(steerFrom),
			SteerTo:      NewText(steerTo),
			CarGroup:     NewText(name),
			SteerType:    NewText(steerType),
			Pool:         entry.Location,
			YieldingDate: yieldingDate,
			Value:        p.Yield,
			YieldCode:    NewText(p.YieldCode),
		})
		return nil
	}

	for _, item := range entry.Data {
		if err := add(item.Name, item.Period, SteerTypeUDA); err != nil {
			return nil, err
		}
		for _, peak := range item.Peaks {
			if err := add(item.Name, peak, SteerTypePeak); err != nil {
				return nil, err
			}
		}
	}
	return criteria, nil
}

// AnalyzeDateRange 计算覆盖所有时段的查询范围
func (m *Mapper) AnalyzeDateRange(entry *Entry) (*FetchQuery, error) {
	if len(entry.Data) == 0 {
		return nil, &FormatError{Message: "no dates to analyze, data is empty"}
	}

	var minDate, maxDate string
	observe := func(raw string) error {
		d, err := ParseDate(raw)
		if err != nil {
			return err
		}
		if minDate == "" || d < minDate {
			minDate = d
		}
		if maxDate == "" || d > maxDate {
			maxDate = d
		}
		return nil
	}

	for _, item := range entry.Data {
		periods := append([]Period{item.Period}, item.Peaks...)
		for _, p := range periods {
			if err := observe(p.Start); err != nil {
				return nil, err
			}
			if err := observe(p.End); err != nil {
				return nil, err
			}
		}
	}

	steerFrom, steerTo := steerWindow(minDate, maxDate)
	return &FetchQuery{
		LocationID:    entry.Location.String,
		LocationLevel: m.defaults.LocationLevel,
		SteerFrom:     steerFrom,
		SteerTo:       steerTo,
		Limit:         FetchLimit,
		Offset:        0,
	}, nil
}

// DisplayRecords 发布前预览用的记录
func (m *Mapper) DisplayRecords(entry *Entry) ([]SteeringRecord, error) {
	records := make([]SteeringRecord, 0, countRecords(entry))
	stable := false

	add := func(name string, p Period, steerType string) error {
		from, to, err := dateSpan(p)
		if err != nil {
			return err
		}
		steerFrom, steerTo := steerWindow(from, to)
		value := Value(placeholder)
		if p.Yield.Present() {
			value = Value(p.Yield.String)
		}
		records = append(records, SteeringRecord{
			LocationLevel:       DisplayLocationLevel,
			LocationID:          FlexString(entry.Location.String),
			SteerType:           steerType,
			LengthOfRentFrom:    p.Lor,
			LengthOfRentTo:      p.Mlor,
			VehicleGroup:        name,
			Value:               value,
			SteerFrom:           steerFrom,
			SteerTo:             steerTo,
			Identity:            placeholder,
			Channel:             placeholder,
			AvailableType:       placeholder,
			Remark:              placeholder,
			Direction:           placeholder,
			RatePlan:            placeholder,
			RateCode:            placeholder,
			PointOfSaleLocation: placeholder,
			Stable:              &stable,
		})
		return nil
	}

	for _, item := range entry.Data {
		if err := add(item.Name, item.Period, SteerTypeUDA); err != nil {
			return nil, err
		}
		for _, peak := range item.Peaks {
			if err := add(item.Name, peak, SteerTypePeak); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

func priceType(steerType string) string {
	if steerType == SteerTypePeak {
		return PriceTypePeak
	}
	return PriceTypeUDA
}

func countRecords(entry *Entry) int {
	n := 0
	for _, item := range entry.Data {
		n += 1 + len(item.Peaks)
	}
	return n
}
