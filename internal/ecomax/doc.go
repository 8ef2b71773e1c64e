// Package ecomax is the high-level client for an ecoMAX360 controller.
//
// A Client reads parameters by name, writes registers with range checked
// values and manages the underlying session: the link is opened on demand
// and closed again after a link failure, or after every operation when
// KeepAlive is off.
//
//	client, err := ecomax.NewClientFromConfig(ctrl)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	reading, err := client.Read(ctx, params.GetThermostat)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(reading["TEMPERATURE"])
//
//	err = client.SetPreset(ctx, params.PresetEco)
//
// Writes can be checked afterwards: SetPresetAndVerify and
// SetSetpointAndVerify re-read the thermostat with backoff until it reports
// the new value.
package ecomax
