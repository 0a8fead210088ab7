package steering

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// steer type
const (
	SteerTypeUDA  = "STEER_TYPE_UDA"
	SteerTypePeak = "STEER_TYPE_PEAK"
)

// value type
const (
	ValueTypeRateP = "VALUE_TYPE_RATE_P"
	ValueTypeRateI = "VALUE_TYPE_RATE_I"
)

// operation
const (
	OperationUpsert = "UPSERT_WITH_STEER_PERIOD_SPLIT"
	OperationDelete = "DELETE_WITH_STEER_PERIOD_SPLIT"
)

// 本地价格记录类型
const (
	PriceTypeUDA  = "UDA"
	PriceTypePeak = "PEAK"
)

// 租期默认范围
const (
	DefaultLengthOfRentFrom = 1
	DefaultLengthOfRentTo   = 999
)

// Text JSON 中的字符串或数字；null 或缺省时 Valid 为 false
type Text struct {
	String string
	Valid  bool
}

// NewText 创建有效的 Text
func NewText(s string) Text {
	return Text{String: s, Valid: true}
}

// Present 字段存在且非空
func (t Text) Present() bool {
	return t.Valid && t.String != ""
}

// Ptr 缺省时返回 nil
func (t Text) Ptr() *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = Text{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = NewText(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*t = NewText(string(data))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*t = NewText(n.String())
	}
	return nil
}

// FlexString 接受字符串或数字，总是编码为字符串
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlexString(t.String)
	return nil
}

// Value steering 记录的数值；发布时是数字，展示时可能是 "-"
type Value string

func (v Value) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(v), 64); err == nil && json.Valid([]byte(v)) {
		return []byte(v), nil
	}
	return json.Marshal(string(v))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*v = Value(t.String)
	return nil
}

// Period 一个定价时段（主时段或 peak 子时段）
type Period struct {
	Start     string `json:"start"`   // DD/MM/YYYY
	End       string `json:"end"`     // DD/MM/YYYY
	Yield     Text   `json:"yield"`   // 展示用收益
	YieldCode string `json:"yield_s"` // P<n> / I<n>
	Price     Text   `json:"price"`   // 逗号或点作小数点
	Lor       int    `json:"Lor"`     // 租期下限
	Mlor      int    `json:"Mlor"`    // 租期上限
}

// UnmarshalJSON 租期缺省时取默认值；encoding/json 的字段匹配不区分大小写，lor/Lor 均可
func (p *Period) UnmarshalJSON(data []byte) error {
	type plain Period
	v := plain{Lor: DefaultLengthOfRentFrom, Mlor: DefaultLengthOfRentTo}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Period(v)
	return nil
}

// Item 一个车型组的定价规则
type Item struct {
	Name string `json:"name"`
	Period
	Peaks []Period `json:"peaks"`
}

// UnmarshalJSON Period 的 UnmarshalJSON 会被提升，这里分开解码
func (it *Item) UnmarshalJSON(data []byte) error {
	var period Period
	if err := json.Unmarshal(data, &period); err != nil {
		return err
	}
	var rest struct {
		Name  string   `json:"name"`
		Peaks []Period `json:"peaks"`
	}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	*it = Item{Name: rest.Name, Period: period, Peaks: rest.Peaks}
	return nil
}

// Entry 用户录入的数据
type Entry struct {
	Date     string `json:"date"`     // 定价日期 DD/MM/YYYY
	Location Text   `json:"location"` // 门店/pool 编号
	Data     []Item `json:"data"`
}

// SteeringRecord 外部 API 的 steering 记录
type SteeringRecord struct {
	ID                  FlexString `json:"id,omitempty"`
	LocationLevel       string     `json:"location_level"`
	LocationID          FlexString `json:"location_id"`
	SteerType           string     `json:"steer_type"`
	LengthOfRentFrom    int        `json:"length_of_rent_from"`
	LengthOfRentTo      int        `json:"length_of_rent_to"`
	VehicleType         string     `json:"vehicle_type,omitempty"`
	VehicleGroup        string     `json:"vehicle_group"`
	YieldType           string     `json:"yield_type,omitempty"`
	ValueType           string     `json:"value_type,omitempty"`
	Value               Value      `json:"value"`
	SteerFrom           string     `json:"steer_from"` // YYYY-MM-DD HH:mm
	SteerTo             string     `json:"steer_to"`   // YYYY-MM-DD HH:mm
	Identity            string     `json:"identity"`
	Channel             string     `json:"channel"`
	AvailableType       string     `json:"available_type"`
	Remark              string     `json:"remark"`
	Operation           string     `json:"operation,omitempty"`
	Direction           string     `json:"direction,omitempty"`
	RatePlan            string     `json:"rate_plan,omitempty"`
	RateCode            string     `json:"rate_code,omitempty"`
	PointOfSaleLocation string     `json:"point_of_sale_location,omitempty"`
	Stable              *bool      `json:"stable,omitempty"`
	CreatedAt           string     `json:"created_at,omitempty"`
}

// PriceDataRecord 本地保存的价格记录
type PriceDataRecord struct {
	YieldingDate Text `json:"yielding_date"`
	CarGroup     Text `json:"car_group"`
	Type         Text `json:"type"`
	StartDate    Text `json:"start_date"`
	EndDate      Text `json:"end_date"`
	Yield        Text `json:"yield"`
	YieldCode    Text `json:"yield_code"`
	Price        Text `json:"price"`
	Pool         Text `json:"pool"`
}

// MissingField 返回第一个缺失的必填字段名，全部存在时返回空串
func (r PriceDataRecord) MissingField() string {
	fields := []struct {
		name  string
		value Text
	}{
		{"yielding_date", r.YieldingDate},
		{"car_group", r.CarGroup},
		{"type", r.Type},
		{"start_date", r.StartDate},
		{"end_date", r.EndDate},
		{"yield", r.Yield},
		{"yield_code", r.YieldCode},
		{"price", r.Price},
		{"pool", r.Pool},
	}
	for _, f := range fields {
		if !f.value.Valid {
			return f.name
		}
	}
	return ""
}

// DeleteCriterion 删除本地价格记录的匹配条件
type DeleteCriterion struct {
	SteerFrom    Text `json:"steer_from"`
	SteerTo      Text `json:"steer_to"`
	CarGroup     Text `json:"car_group"`
	SteerType    Text `json:"steer_type"`
	Pool         Text `json:"pool"`
	YieldingDate Text `json:"yielding_date"`
	Value        Text `json:"value"`
	YieldCode    Text `json:"yield_code"`
}

// PriceType steer type 对应的本地价格类型
func (c DeleteCriterion) PriceType() string {
	return priceType(c.SteerType.String)
}

// Payload 发布请求
type Payload struct {
	Steerings []SteeringRecord  `json:"steerings"`
	PriceData []PriceDataRecord `json:"price_data,omitempty"`
}

// DeletePayload 删除请求
type DeletePayload struct {
	Steerings []SteeringRecord  `json:"steerings"`
	PriceData []DeleteCriterion `json:"price_data,omitempty"`
}

// FetchQuery GetSteerings 查询条件
type FetchQuery struct {
	LocationID    string `json:"location_id"`
	LocationLevel string `json:"location_level"`
	SteerFrom     string `json:"steer_from"`
	SteerTo       string `json:"steer_to"`
	Limit         int    `json:"limit"`
	Offset        int    `json:"offset"`
}

// YieldCode 解析后的收益代码
type YieldCode struct {
	ValueType string `json:"value_type"`
	Value     int    `json:"value"`
}
