package entities

import "github.com/ay01sec/labor-admin-sub000/internal/core"

func ClientConfig() core.ImportConfig {
	return core.ImportConfig{
		Key:              Client,
		EntityName:       "取引先",
		Collection:       "clients",
		IdentifierField:  "clientCode",
		IdentifierColumn: "取引先コード",
		FieldMappings: []core.FieldMapping{
			{CSVColumn: "取引先コード", Field: "clientCode", Type: core.FieldString, Required: true},
			{CSVColumn: "取引先名", Field: "name", Type: core.FieldString, Required: true},
			{CSVColumn: "担当者名", Field: "contactName", Type: core.FieldString},
			{CSVColumn: "メールアドレス", Field: "email", Type: core.FieldEmail},
			{CSVColumn: "電話番号", Field: "phone", Type: core.FieldString},
			{CSVColumn: "郵便番号", Field: "address.postalCode", Type: core.FieldString},
			{CSVColumn: "住所", Field: "address.street", Type: core.FieldString},
			{CSVColumn: "締め日", Field: "closingDay", Type: core.FieldNumber},
		},
		SampleData: map[string]string{
			"取引先コード":  "C001",
			"取引先名":    "株式会社サンプル建設",
			"担当者名":    "佐藤花子",
			"メールアドレス": "sato@example.co.jp",
			"電話番号":    "03-1234-5678",
			"郵便番号":    "150-0001",
			"住所":      "東京都渋谷区神宮前1-1-1",
			"締め日":     "20",
		},
	}
}
