package validators

import "go.mongodb.org/mongo-driver/bson"

var EventTypeValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"title", "duration_minutes", "is_round_robin", "booking_horizon_months", "modification_cutoff_hours"},
		"properties": bson.M{
			"title":                     bson.M{"bsonType": "string", "minLength": 1, "maxLength": 200},
			"duration_minutes":          bson.M{"bsonType": []string{"int", "long"}, "minimum": 1, "maximum": 1440},
			"group_id":                  bson.M{"bsonType": "string"},
			"is_round_robin":            bson.M{"bsonType": "bool"},
			"booking_horizon_months":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"modification_cutoff_hours": bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"site":                      bson.M{"bsonType": "string"},
			"requires_room":             bson.M{"bsonType": "bool"},
		},
	},
}

var AdvisorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name"},
		"properties": bson.M{
			"name":  bson.M{"bsonType": "string", "minLength": 1},
			"email": bson.M{"bsonType": "string"},
			"credential": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"access_token":  bson.M{"bsonType": "string"},
					"refresh_token": bson.M{"bsonType": "string"},
					"expires_at":    bson.M{"bsonType": "date"},
				},
			},
		},
	},
}

var GroupValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "advisor_ids"},
		"properties": bson.M{
			"name":        bson.M{"bsonType": "string"},
			"advisor_ids": bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
		},
	},
}

var RoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "site"},
		"properties": bson.M{
			"name":            bson.M{"bsonType": "string", "minLength": 1},
			"site":            bson.M{"bsonType": "string"},
			"contact_address": bson.M{"bsonType": "string"},
			"position":        bson.M{"bsonType": []string{"int", "long"}},
		},
	},
}

var TemplateValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"advisor_id", "weekday", "start_time", "end_time", "locked"},
		"properties": bson.M{
			"advisor_id": bson.M{"bsonType": "string"},
			"weekday":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 1, "maximum": 7},
			"start_time": bson.M{"bsonType": "string", "pattern": `^([01][0-9]|2[0-3]):[0-5][0-9]$`},
			"end_time":   bson.M{"bsonType": "string", "pattern": `^([01][0-9]|2[0-3]):[0-5][0-9]$`},
			"locked":     bson.M{"bsonType": "bool"},
		},
	},
}

var AvailabilityBlockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"advisor_id", "start_time", "end_time"},
		"properties": bson.M{
			"advisor_id": bson.M{"bsonType": "string"},
			"start_time": bson.M{"bsonType": "date"},
			"end_time":   bson.M{"bsonType": "date"},
		},
	},
}
