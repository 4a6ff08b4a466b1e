package entities

import "github.com/ay01sec/labor-admin-sub000/internal/core"

// SiteStatuses are the accepted 状態 values.
var SiteStatuses = []string{"準備中", "稼働中", "完了"}

// SiteConfig resolves 取引先コード against the clients collection. The
// matched client's id lands in 取引先ID, and its name fills a blank 取引先名.
func SiteConfig() core.ImportConfig {
	return core.ImportConfig{
		Key:              Site,
		EntityName:       "現場",
		Collection:       "sites",
		IdentifierField:  "siteCode",
		IdentifierColumn: "現場コード",
		FieldMappings: []core.FieldMapping{
			{CSVColumn: "現場コード", Field: "siteCode", Type: core.FieldString, Required: true},
			{CSVColumn: "現場名", Field: "name", Type: core.FieldString, Required: true},
			{CSVColumn: "取引先コード", Field: "client.code", Type: core.FieldString},
			{CSVColumn: "取引先名", Field: "client.name", Type: core.FieldString, Required: true},
			{CSVColumn: "取引先ID", Field: "client.id", Type: core.FieldString, Derived: true},
			{CSVColumn: "住所", Field: "address", Type: core.FieldString},
			{CSVColumn: "開始日", Field: "startDate", Type: core.FieldDate},
			{CSVColumn: "終了日", Field: "endDate", Type: core.FieldDate},
			{CSVColumn: "状態", Field: "status", Type: core.FieldEnum, Options: SiteStatuses},
		},
		Reference: &core.ReferenceConfig{
			Collection: "clients",
			CodeColumn: "取引先コード",
			CodeField:  "clientCode",
			NameColumn: "取引先名",
			NameField:  "name",
			IDColumn:   "取引先ID",
		},
		SampleData: map[string]string{
			"現場コード":  "S001",
			"現場名":    "渋谷駅前再開発工事",
			"取引先コード": "C001",
			"取引先名":   "株式会社サンプル建設",
			"住所":     "東京都渋谷区道玄坂2-1",
			"開始日":    "2024-04-01",
			"終了日":    "2025-03-31",
			"状態":     "稼働中",
		},
	}
}
