package calendar

import (
	"fmt"
	"io"
	"time"

	ics "github.com/emersion/go-ical"

	"coursehub/internal/common/errors"
)

// WriteICS renders events as an iCalendar feed so deadlines can be
// subscribed to from any calendar app. Export only; nothing is read back.
func WriteICS(w io.Writer, calendarName string, events []Event) error {
	cal := ics.NewCalendar()
	cal.Props.SetText(ics.PropVersion, "2.0")
	cal.Props.SetText(ics.PropProductID, "-//coursehub//calendar feed//EN")
	if calendarName != "" {
		// Set without an explicit value type; TEXT is the default and the
		// conventional form for this prop.
		name := ics.NewProp("X-WR-CALNAME")
		name.Value = calendarName
		cal.Props.Set(name)
	}

	now := time.Now().UTC()
	for i, event := range events {
		ev := ics.NewEvent()

		uid := event.ID
		if uid == "" {
			uid = fmt.Sprintf("event-%d@coursehub", i)
		}
		ev.Props.SetText(ics.PropUID, uid)
		ev.Props.SetDateTime(ics.PropDateTimeStamp, now)
		ev.Props.SetText(ics.PropSummary, event.Summary)
		if event.Description != "" {
			ev.Props.SetText(ics.PropDescription, event.Description)
		}
		if event.Location != "" {
			ev.Props.SetText(ics.PropLocation, event.Location)
		}

		if event.AllDay {
			setDateProp(ev, ics.PropDateTimeStart, event.Start)
			setDateProp(ev, ics.PropDateTimeEnd, event.End)
		} else {
			ev.Props.SetDateTime(ics.PropDateTimeStart, event.Start.UTC())
			ev.Props.SetDateTime(ics.PropDateTimeEnd, event.End.UTC())
		}

		cal.Children = append(cal.Children, ev.Component)
	}

	if err := ics.NewEncoder(w).Encode(cal); err != nil {
		return errors.InternalError("failed to encode calendar feed", err)
	}
	return nil
}

func setDateProp(ev *ics.Event, name string, t time.Time) {
	prop := ics.NewProp(name)
	prop.SetValueType(ics.ValueDate)
	prop.Value = t.Format("20060102")
	ev.Props.Set(prop)
}
