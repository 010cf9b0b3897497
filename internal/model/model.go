package model

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&Account{},
		&Post{},
		&Comment{},
		&Like{},
		&Follow{},
		&Notification{},
		&MutationEvent{},
		&ReactionReceipt{},
	}
}
