package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ExportJob{}, &Export{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ShareLink{}); err != nil {
		return err
	}

	return nil
}
