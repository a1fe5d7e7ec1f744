package models

// DataClassification 数据敏感级别
// 全序关系: PUBLIC < INTERNAL < PII < PHI
// 用于决定某次访问是否需要审计、是否需要审批门槛
type DataClassification string

const (
	// ClassificationPublic 公开数据
	ClassificationPublic DataClassification = "PUBLIC"
	// ClassificationInternal 内部数据
	ClassificationInternal DataClassification = "INTERNAL"
	// ClassificationPII 个人身份信息
	ClassificationPII DataClassification = "PII"
	// ClassificationPHI 个人健康信息（最高敏感级别）
	ClassificationPHI DataClassification = "PHI"
)

// classificationRank 级别排序，数值越大越敏感
var classificationRank = map[DataClassification]int{
	ClassificationPublic:   0,
	ClassificationInternal: 1,
	ClassificationPII:      2,
	ClassificationPHI:      3,
}

// Valid 判断是否为合法的敏感级别
func (c DataClassification) Valid() bool {
	_, ok := classificationRank[c]
	return ok
}

// Rank 返回级别序号，未知级别返回 -1
func (c DataClassification) Rank() int {
	if r, ok := classificationRank[c]; ok {
		return r
	}
	return -1
}

// AtLeast 判断当前级别是否不低于 other
func (c DataClassification) AtLeast(other DataClassification) bool {
	return c.Rank() >= other.Rank() && c.Valid()
}

// Classifications 返回所有敏感级别（按从低到高排序）
func Classifications() []DataClassification {
	return []DataClassification{
		ClassificationPublic,
		ClassificationInternal,
		ClassificationPII,
		ClassificationPHI,
	}
}
