package entities

import "github.com/ay01sec/labor-admin-sub000/internal/core"

// EmploymentTypes are the accepted 雇用形態 values.
var EmploymentTypes = []string{"正社員", "契約社員", "アルバイト", "外注"}

func EmployeeConfig() core.ImportConfig {
	return core.ImportConfig{
		Key:              Employee,
		EntityName:       "社員",
		Collection:       "employees",
		IdentifierField:  "employeeCode",
		IdentifierColumn: "社員番号",
		FieldMappings: []core.FieldMapping{
			{CSVColumn: "社員番号", Field: "employeeCode", Type: core.FieldString, Required: true},
			{CSVColumn: "氏", Field: "name.last", Type: core.FieldString, Required: true},
			{CSVColumn: "名", Field: "name.first", Type: core.FieldString, Required: true},
			{CSVColumn: "氏(カナ)", Field: "name.lastKana", Type: core.FieldString},
			{CSVColumn: "名(カナ)", Field: "name.firstKana", Type: core.FieldString},
			{CSVColumn: "メールアドレス", Field: "email", Type: core.FieldEmail},
			{CSVColumn: "電話番号", Field: "phone", Type: core.FieldString},
			{CSVColumn: "生年月日", Field: "birthDate", Type: core.FieldDate},
			{CSVColumn: "入社日", Field: "hireDate", Type: core.FieldDate},
			{CSVColumn: "雇用形態", Field: "employmentType", Type: core.FieldEnum, Options: EmploymentTypes},
			{CSVColumn: "郵便番号", Field: "address.postalCode", Type: core.FieldString},
			{CSVColumn: "都道府県", Field: "address.prefecture", Type: core.FieldString},
			{CSVColumn: "市区町村", Field: "address.city", Type: core.FieldString},
			{CSVColumn: "住所", Field: "address.street", Type: core.FieldString},
			{CSVColumn: "保有資格", Field: "qualifications", Type: core.FieldArray},
			{CSVColumn: "有効", Field: "isActive", Type: core.FieldBoolean},
		},
		SampleData: map[string]string{
			"社員番号":    "E001",
			"氏":       "山田",
			"名":       "太郎",
			"氏(カナ)":   "ヤマダ",
			"名(カナ)":   "タロウ",
			"メールアドレス": "yamada@example.com",
			"電話番号":    "090-1234-5678",
			"生年月日":    "1985-04-01",
			"入社日":     "2020-04-01",
			"雇用形態":    "正社員",
			"郵便番号":    "100-0001",
			"都道府県":    "東京都",
			"市区町村":    "千代田区",
			"住所":      "千代田1-1",
			"保有資格":    "玉掛け,足場の組立て等作業主任者",
			"有効":      "true",
		},
	}
}
