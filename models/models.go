package models

// All lists every model owned by the schema, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Recording{},
		&Checkin{},
		&Approval{},
		&PointsHistory{},
		&ScripturePlan{},
	}
}
