// Package hospital answers hospital directory lookups from a SQLite database.
//
// The hospitals table is built by Import from a CSV export of the national
// hospital directory. Every column is TEXT; missing values are stored as
// empty strings and returned trimmed.
//
// Usage:
//
//	store, err := hospital.Open("data.db", logger)
//	rows, _ := hospital.ReadCSV(f)
//	_ = store.Import(ctx, rows)
//	res, _ := store.Search(ctx, hospital.Query{Province: "广东省", Departments: "皮肤科"})
package hospital
